package dicomimage

// Result is the outcome of decoding one candidate DICOM file: either an Image,
// or the reason the file was not a usable DICOM. Callers must go through Get,
// so an invalid file cannot be mistaken for an image.
type Result struct {
	image  *Image
	reason error
}

// Decoded builds a Result that carries img. A nil img gives an invalid
// Result.
func Decoded(img *Image) Result {
	return Result{image: img}
}

// Invalid builds a Result that carries no image.
func Invalid(reason error) Result {
	if reason == nil {
		reason = ErrInvalid
	}

	return Result{reason: reason}
}

// Get returns the decoded image and true, or nil and false for an invalid
// file.
func (r Result) Get() (*Image, bool) {
	return r.image, r.image != nil
}

func (r Result) Valid() bool {
	return r.image != nil
}

// Reason explains why the file was invalid. It is nil for a valid Result.
func (r Result) Reason() error {
	if r.image != nil {
		return nil
	}

	if r.reason == nil {
		return ErrInvalid
	}

	return r.reason
}
