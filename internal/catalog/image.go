package catalog

// MaxImages caps the sheet-music images held by a song or a setlist item.
const MaxImages = 10

// ImageRef addresses an encoded image in the blob store. Its position in the
// owning record's image list is its identity.
type ImageRef struct {
	Key         string `json:"key"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size_bytes"`
}

// CheckImageCapacity fails when adding n images to a list of current entries
// would pass MaxImages.
func CheckImageCapacity(entity string, current, n int) error {
	if current+n > MaxImages {
		return invalid(entity, ErrImageLimitExceeded, "%d images present, limit is %d", current, MaxImages)
	}
	return nil
}

func cloneImages(in []ImageRef) []ImageRef {
	out := make([]ImageRef, len(in))
	copy(out, in)
	return out
}

// ImageKeys lists the blob keys in order.
func ImageKeys(refs []ImageRef) []string {
	keys := make([]string, len(refs))
	for i, r := range refs {
		keys[i] = r.Key
	}
	return keys
}
