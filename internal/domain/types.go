package domain

const (
	Black = 0
	White = 1
)

// RawExample is one decoded game record.
// Planes, Ownership are BoardSize*BoardSize long, Prob and AuxProb carry one
// extra trailing pass slot.
type RawExample struct {
	BoardSize int
	ToMove    int
	Komi      float32
	Rule      float32
	Wave      float32

	Planes    [][]float32
	Prob      []float32
	AuxProb   []float32
	Ownership []float32

	Result     int
	FinalScore float32

	AvgQ      float32
	ShortAvgQ float32
	MidAvgQ   float32
	LongAvgQ  float32

	AvgScore      float32
	ShortAvgScore float32
	MidAvgScore   float32
	LongAvgScore  float32
}

// TrainingExample is a RawExample after symmetry augmentation.
type TrainingExample struct {
	RawExample
	Symmetry int
}

func (e *RawExample) NumIntersections() int {
	return e.BoardSize * e.BoardSize
}
