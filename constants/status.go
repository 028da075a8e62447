package constants

// Stage names the step of the extraction pipeline that resolved a field.
type Stage string

// Stable values, reported in results and logs.
const (
	StageNone          Stage = "none"
	StageDeterministic Stage = "deterministic"
	StageModelRefine   Stage = "model_refine"    // model suggestion over recognized text
	StageModelDirect   Stage = "model_direct"    // model read the image itself
	StageModelConfirm  Stage = "model_confirmed" // deterministic value the model agreed with
)

// VerificationMethod records which path produced a verification verdict.
type VerificationMethod string

const (
	MethodModel      VerificationMethod = "model"
	MethodRecognizer VerificationMethod = "recognizer"
	MethodCombined   VerificationMethod = "combined"
	MethodNone       VerificationMethod = "none"
)

// Layout is the device class inferred from an image aspect ratio.
type Layout string

const (
	LayoutLandscape Layout = "landscape"
	LayoutTablet    Layout = "tablet"
	LayoutPhone     Layout = "phone"
)
