package gemini

import "fmt"

// FaceImage is an optional reference photo biasing generation toward a
// specific face.
type FaceImage struct {
	DataBase64 string
	MimeType   string
}

// Request describes one generation call. A nil Face selects the text-to-image
// branch; a non-nil Face selects the multimodal branch.
type Request struct {
	Prompt      string
	AspectRatio string
	Face        *FaceImage
}

type Image struct {
	DataBase64 string
	MimeType   string
}

// DataURL encodes the image for direct display in an <img> tag.
func (i Image) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", i.MimeType, i.DataBase64)
}
