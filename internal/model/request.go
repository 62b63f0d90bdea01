package model

// Part is one element of a model request: either a resolved file reference
// or a text segment, never both.
type Part struct {
	Text    string
	FileURI string
	MIME    string
}

// ModelRequest is the ordered payload sent to the generation service: one
// file part per active document followed by a single composed text part.
type ModelRequest struct {
	Parts []Part
}

// TextPart returns a text-only part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// FilePart returns a file-reference part.
func FilePart(ref FileRef) Part {
	return Part{FileURI: ref.URI, MIME: ref.MIMEType}
}
