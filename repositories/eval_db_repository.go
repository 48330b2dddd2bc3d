package repositories

// EvalDbRepository holds every query on the application database. Methods take the executor as an
// argument, so that the caller decides whether they run inside a transaction.
type EvalDbRepository struct{}

func NewEvalDbRepository() *EvalDbRepository {
	return &EvalDbRepository{}
}
