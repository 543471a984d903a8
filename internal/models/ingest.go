package models

// IngestJob is the Kafka message published when a document is uploaded and
// consumed by the ingestion worker.
type IngestJob struct {
	DocumentID   string `json:"documentID"`
	CollectionID int    `json:"collectionID"`
	UserID       string `json:"userID"`
	FileName     string `json:"fileName"`
	// Path is where the API stored the uploaded payload on shared storage.
	Path string `json:"path"`
}
