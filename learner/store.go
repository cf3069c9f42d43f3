package learner

// Store persists learned weights between runs.
type Store interface {
	Save(weights []float64) error
	Load() ([]float64, error)
}

// NopStore keeps nothing; Load returns no weights so the estimator starts
// from random ones.
type NopStore struct{}

func (NopStore) Save(weights []float64) error { return nil }
func (NopStore) Load() ([]float64, error)     { return nil, nil }
