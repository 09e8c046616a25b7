package epub

import "errors"

var (
	ErrInvalidMimetype    = errors.New("invalid mimetype: must be 'application/epub+zip'")
	ErrMimetypeCompressed = errors.New("mimetype must not be compressed")
	ErrMimetypeNotFound   = errors.New("mimetype file not found")
	ErrContainerNotFound  = errors.New("META-INF/container.xml not found")
	ErrOPFPathNotFound    = errors.New("OPF path not found in container.xml")
	ErrFileNotFound       = errors.New("file not found")
	ErrFileExists         = errors.New("file already exists")
	ErrInvalidPath        = errors.New("path escapes the package root")
)
