package storage

// StorageInterface defines the contract for raw blob storage. The document
// source layers session-scoped naming on top of it.
type StorageInterface interface {
	Store(name string, data []byte) error
	Retrieve(name string) ([]byte, error)
	List(prefix string) ([]string, error)
	Delete(name string) error
}
