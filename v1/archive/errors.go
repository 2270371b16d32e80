package archive

import "errors"

var (
	// ErrUnsupportedDriver is returned for a Config.Driver other than postgres or mysql.
	ErrUnsupportedDriver = errors.New("archive: unsupported driver")

	// ErrNotConnected is returned when the archive has no open pool.
	ErrNotConnected = errors.New("archive: database is not connected")
)
