package results

// SetEditorQueryMsg tells the app to put a query in the editor pane.
type SetEditorQueryMsg struct {
	Query string
}

// StatusNotifyMsg tells the app to show a message in the status bar.
type StatusNotifyMsg struct {
	Message string
}

// NextBatchMsg asks the app to fetch the next batch of the open stream.
type NextBatchMsg struct{}

// CloseStreamMsg asks the app to close the open stream.
type CloseStreamMsg struct{}
