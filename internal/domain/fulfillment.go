package domain

// PaymentSession is the gateway handle returned when checkout starts.
type PaymentSession struct {
	ID  string
	URL string
}

// PaymentVerification reports the state of a previously created session.
// Paid=false means the session exists but has not been paid.
type PaymentVerification struct {
	Paid         bool
	ContactEmail string
}

type GenerationOptions struct {
	Model          string
	MaxOutputUnits int
	Temperature    float64
}

// GenerationResult is either generated text or a degraded marker carrying
// the reason the backend could not produce it.
type GenerationResult struct {
	Text     string
	Degraded bool
	Reason   string
}

func GenerationOK(text string) GenerationResult {
	return GenerationResult{Text: text}
}

func GenerationDegraded(reason string) GenerationResult {
	return GenerationResult{Degraded: true, Reason: reason}
}

// Artifact locates a packaged deliverable on disk and under the public
// downloads path.
type Artifact struct {
	FilePath     string
	DownloadPath string
}
