package ring

// Queue is the surface shared by SPSC and MPSC.
type Queue[T any] interface {
	Push(v T) bool
	Pop() (T, bool)
	Len() int
	Cap() int
}

var (
	_ Queue[int] = (*SPSC[int])(nil)
	_ Queue[int] = (*MPSC[int])(nil)
)
