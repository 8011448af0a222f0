package core

// Retrieval defaults.
const (
	DefaultK               = 4
	DefaultFetchK          = 20
	DefaultDiversityLambda = 0.5
	DefaultTemperature     = 0.7
	MaxTemperature         = 2.0
)

// RetrievalQuery is a single question to answer, with optional prior turns
// and retrieval parameters.
type RetrievalQuery struct {
	Question        string
	PriorTurns      []Turn
	K               int
	FetchK          int
	DiversityLambda float64
	Temperature     float64
}

// NewRetrievalQuery returns a query for question using the default parameters.
func NewRetrievalQuery(question string, prior ...Turn) RetrievalQuery {
	return RetrievalQuery{
		Question:        question,
		PriorTurns:      prior,
		K:               DefaultK,
		FetchK:          DefaultFetchK,
		DiversityLambda: DefaultDiversityLambda,
		Temperature:     DefaultTemperature,
	}
}

// Normalize clamps out-of-range parameters and returns the clamped query
// together with the names of the fields it changed.
//
//   - K >= 1
//   - FetchK >= K
//   - 0 <= DiversityLambda <= 1
//   - 0 <= Temperature <= MaxTemperature
func (q RetrievalQuery) Normalize() (RetrievalQuery, []string) {
	var clamped []string

	if q.K < 1 {
		q.K = 1
		clamped = append(clamped, "k")
	}
	if q.FetchK < q.K {
		q.FetchK = q.K
		clamped = append(clamped, "fetchK")
	}
	if q.DiversityLambda < 0 {
		q.DiversityLambda = 0
		clamped = append(clamped, "diversityLambda")
	} else if q.DiversityLambda > 1 {
		q.DiversityLambda = 1
		clamped = append(clamped, "diversityLambda")
	}
	if q.Temperature < 0 {
		q.Temperature = 0
		clamped = append(clamped, "temperature")
	} else if q.Temperature > MaxTemperature {
		q.Temperature = MaxTemperature
		clamped = append(clamped, "temperature")
	}

	return q, clamped
}
