package entity

// Verdict is the classification outcome for a frame or a product.
type Verdict string

const (
	VerdictOK Verdict = "OK"
	VerdictNG Verdict = "NG"
)

// Prediction is the classifier result for one frame. A failed invocation is
// recorded in the prediction itself (Failed=true, zero confidence) rather
// than aborting the batch, so output always stays parallel to input.
type Prediction struct {
	Frame      Frame
	Label      Verdict
	Confidence float64
	Failed     bool
	FailReason string
}

// NewPrediction returns a successful prediction.
func NewPrediction(frame Frame, label Verdict, confidence float64) Prediction {
	return Prediction{Frame: frame, Label: label, Confidence: confidence}
}

// FailedPrediction returns the failure sentinel for a frame whose
// classification call did not succeed.
func FailedPrediction(frame Frame, reason string) Prediction {
	return Prediction{Frame: frame, Failed: true, FailReason: reason}
}

// IsNG reports whether the frame was positively classified as defective.
// A failed call is not a defect finding.
func (p Prediction) IsNG() bool {
	return !p.Failed && p.Label == VerdictNG
}
