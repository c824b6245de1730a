package entity

// ProductRecord aggregates a fixed-size run of frame predictions into a
// per-product verdict. ProductID is globally unique and strictly increasing
// across all inspection runs.
type ProductRecord struct {
	ProductID   int64
	Frames      []Prediction
	FinalResult Verdict
}

// NewProductRecord derives the final verdict from the constituent
// predictions: NG if and only if at least one prediction is NG.
func NewProductRecord(productID int64, frames []Prediction) ProductRecord {
	verdict := VerdictOK
	for _, p := range frames {
		if p.IsNG() {
			verdict = VerdictNG
			break
		}
	}
	return ProductRecord{
		ProductID:   productID,
		Frames:      frames,
		FinalResult: verdict,
	}
}
