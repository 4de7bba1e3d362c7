package booth

import (
	"errors"
	"fmt"

	"github.com/cjeanneret/pimaton/internal/hw/camera"
	"github.com/cjeanneret/pimaton/internal/hw/printer"
	"github.com/cjeanneret/pimaton/internal/logic/compose"
	"github.com/cjeanneret/pimaton/internal/syncer"
)

// ErrPictureCount is wrapped by CountError.
var ErrPictureCount = errors.New("wrong number of pictures")

// CountError is returned when the camera did not produce the configured
// number of pictures. It belongs to the image error kind.
type CountError struct {
	Got  int
	Want int
}

func (e *CountError) Error() string {
	return fmt.Sprintf("image: %d pictures taken, %d expected", e.Got, e.Want)
}

func (e *CountError) Unwrap() error {
	return ErrPictureCount
}

// DirError is returned when a working directory cannot be created.
type DirError struct {
	Path string
	Err  error
}

func (e *DirError) Error() string {
	return fmt.Sprintf("directory %s: %v", e.Path, e.Err)
}

func (e *DirError) Unwrap() error {
	return e.Err
}

// Error kinds reported by Kind.
const (
	KindCamera     = "camera"
	KindImage      = "image"
	KindPrint      = "print"
	KindSync       = "sync"
	KindFilesystem = "filesystem"
	KindOther      = "other"
)

// Kind classifies err by the component that produced it.
func Kind(err error) string {
	var (
		camErr   *camera.Error
		imgErr   *compose.Error
		countErr *CountError
		prErr    *printer.Error
		syncErr  *syncer.Error
		dirErr   *DirError
	)
	switch {
	case errors.As(err, &camErr):
		return KindCamera
	case errors.As(err, &imgErr), errors.As(err, &countErr):
		return KindImage
	case errors.As(err, &prErr):
		return KindPrint
	case errors.As(err, &syncErr):
		return KindSync
	case errors.As(err, &dirErr):
		return KindFilesystem
	default:
		return KindOther
	}
}

// IsImageError reports whether err comes from composing the final picture.
func IsImageError(err error) bool {
	return Kind(err) == KindImage
}
