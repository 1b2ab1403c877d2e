// internal/workers/prompt/dispatch-prompt/models.go
package dispatchprompt

type Input struct {
	TemplateID string `json:"templateId"`
	DatasetRef string `json:"datasetRef"`
}

type Output struct {
	ResponseID string `json:"responseId"`
	TemplateID string `json:"templateId"`
	Response   string `json:"response"`
	CapturedAt string `json:"capturedAt"`
	Location   string `json:"location"`
}
