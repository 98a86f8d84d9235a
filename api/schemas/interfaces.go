// File: api/schemas/interfaces.go
package schemas

import "context"

// LLMClient is the narrow surface of the external classification
// collaborator. Implementations must honor context cancellation; the engine
// always calls with a bounded timeout.
type LLMClient interface {
	GenerateResponse(ctx context.Context, req GenerationRequest) (string, error)
}

// DeviceDriver is the automation-driver collaborator: it owns UI-tree
// extraction and concrete action execution against a live device.
type DeviceDriver interface {
	// DumpHierarchy returns the raw XML UI hierarchy of the current screen.
	DumpHierarchy(ctx context.Context) (string, error)
	Tap(ctx context.Context, x, y int) error
	LongTap(ctx context.Context, x, y int) error
	InputText(ctx context.Context, x, y int, text string) error
	Swipe(ctx context.Context, fx, fy, tx, ty int) error
	Back(ctx context.Context) error
}

// ScreenCapturer is the imaging collaborator, optional everywhere it appears.
type ScreenCapturer interface {
	Screenshot(ctx context.Context) ([]byte, error)
}
