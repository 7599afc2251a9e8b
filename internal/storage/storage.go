package storage

// Slot is a single named unit of durable key-value storage. Reads and
// writes always cover the whole slot; there is no partial update.
type Slot interface {
	// Read returns the current slot contents, or (nil, nil) when the slot
	// has never been written.
	Read() ([]byte, error)
	Write(data []byte) error
}
