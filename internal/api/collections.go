package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/IBM/sarama"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/illegalcall/mentora/internal/credits"
	"github.com/illegalcall/mentora/internal/models"
)

var errCollectionNotFound = errors.New("collection not found")

// resolveCollection maps a collection name to its ID. Global collections
// (no owner) are visible to everyone, private ones only to their owner.
func (s *Server) resolveCollection(c *fiber.Ctx, uid, name string) (int, error) {
	var id int
	err := s.db.DB.GetContext(c.Context(), &id,
		`SELECT id FROM collections
		 WHERE name = $1 AND (user_id = '' OR user_id = $2)`, name, uid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, errCollectionNotFound
		}
		return 0, err
	}
	return id, nil
}

// collectionVisible reports whether the user may read the collection.
func (s *Server) collectionVisible(c *fiber.Ctx, uid string, id int) (bool, error) {
	var count int
	err := s.db.DB.GetContext(c.Context(), &count,
		`SELECT COUNT(*) FROM collections
		 WHERE id = $1 AND (user_id = '' OR user_id = $2)`, id, uid)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Server) handleListCollections(c *fiber.Ctx) error {
	uid := s.userID(c)

	collections := []models.Collection{}
	err := s.db.DB.SelectContext(c.Context(), &collections,
		`SELECT id, name, user_id, created_at FROM collections
		 WHERE user_id = '' OR user_id = $1 ORDER BY name`, uid)
	if err != nil {
		s.logger.Error("Failed to fetch collections", "error", err, "uid", uid)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch collections",
		})
	}

	return c.JSON(fiber.Map{"collections": collections})
}

func (s *Server) handleListDocuments(c *fiber.Ctx) error {
	uid := s.userID(c)

	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid collection ID",
		})
	}

	visible, err := s.collectionVisible(c, uid, id)
	if err != nil {
		s.logger.Error("Failed to check collection", "error", err, "collection_id", id)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch documents",
		})
	}
	if !visible {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Collection not found",
		})
	}

	documents := []models.Document{}
	err = s.db.DB.SelectContext(c.Context(), &documents,
		`SELECT id, collection_id, user_id, file_name, status, error, chars, created_at
		 FROM documents WHERE collection_id = $1 ORDER BY created_at DESC`, id)
	if err != nil {
		s.logger.Error("Failed to fetch documents", "error", err, "collection_id", id)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch documents",
		})
	}

	return c.JSON(fiber.Map{"documents": documents})
}

// handleUploadDocument accepts a multipart file (field "file") or a raw
// body, checks the uploader can afford ingestion, stores the payload and
// publishes an ingestion job. Billing happens in the worker once the
// document actually embeds.
func (s *Server) handleUploadDocument(c *fiber.Ctx) error {
	uid := s.userID(c)

	collectionID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid collection ID",
		})
	}

	visible, err := s.collectionVisible(c, uid, collectionID)
	if err != nil {
		s.logger.Error("Failed to check collection", "error", err, "collection_id", collectionID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to upload document",
		})
	}
	if !visible {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Collection not found",
		})
	}

	fileName := "upload.txt"
	var data []byte
	if fh, err := c.FormFile("file"); err == nil {
		fileName = fh.Filename
		f, err := fh.Open()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Failed to read uploaded file",
			})
		}
		defer f.Close()
		data, err = io.ReadAll(f)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Failed to read uploaded file",
			})
		}
	} else {
		data = c.Body()
	}
	if len(data) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Document is empty",
		})
	}

	// Affordability gate before any work is queued.
	if err := s.ledger.Check(c.Context(), uid, len(data), credits.CheckOptions{Document: true}); err != nil {
		return s.errorResponse(c, err)
	}

	path, err := s.storage.Store(c.Context(), data)
	if err != nil {
		s.logger.Error("Failed to store document", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store document",
		})
	}

	docID := uuid.New().String()
	_, err = s.db.DB.ExecContext(c.Context(),
		`INSERT INTO documents (id, collection_id, user_id, file_name, status)
		 VALUES ($1, $2, $3, $4, $5)`,
		docID, collectionID, uid, fileName, models.DocStatusPending)
	if err != nil {
		s.storage.Delete(c.Context(), path)
		s.logger.Error("Failed to create document", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create document",
		})
	}

	job := models.IngestJob{
		DocumentID:   docID,
		CollectionID: collectionID,
		UserID:       uid,
		FileName:     fileName,
		Path:         path,
	}
	payload, err := json.Marshal(job)
	if err != nil {
		s.logger.Error("Failed to marshal job", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to queue document",
		})
	}

	_, _, err = s.producer.SendMessage(&sarama.ProducerMessage{
		Topic: s.cfg.Kafka.Topic,
		Key:   sarama.StringEncoder(docID),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		s.logger.Error("Failed to publish job", "error", err, "document_id", docID)
		s.db.DB.ExecContext(c.Context(),
			`UPDATE documents SET status = $1, error = $2 WHERE id = $3`,
			models.DocStatusFailed, "failed to queue ingestion", docID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to queue document",
		})
	}

	// Mirror the pending state in Redis for cheap status polling.
	if err := s.db.Redis.Set(c.Context(),
		fmt.Sprintf("doc:%s", docID), models.DocStatusPending, 24*time.Hour).Err(); err != nil {
		s.logger.Warn("Failed to cache document status", "error", err, "document_id", docID)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"id":     docID,
		"status": models.DocStatusPending,
	})
}

// handleDocumentStatus reads the Redis mirror first and falls back to the
// documents row.
func (s *Server) handleDocumentStatus(c *fiber.Ctx) error {
	uid := s.userID(c)
	docID := c.Params("id")

	if status, err := s.db.Redis.Get(c.Context(), fmt.Sprintf("doc:%s", docID)).Result(); err == nil {
		return c.JSON(fiber.Map{"id": docID, "status": status})
	}

	var doc models.Document
	err := s.db.DB.GetContext(c.Context(), &doc,
		`SELECT id, collection_id, user_id, file_name, status, error, chars, created_at
		 FROM documents WHERE id = $1 AND user_id = $2`, docID, uid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Document not found",
			})
		}
		s.logger.Error("Failed to fetch document", "error", err, "document_id", docID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch document",
		})
	}

	resp := fiber.Map{"id": doc.ID, "status": doc.Status}
	if doc.Error != "" {
		resp["error"] = doc.Error
	}
	return c.JSON(resp)
}

func (s *Server) handleCreateCollection(c *fiber.Ctx) error {
	var req models.NewCollectionRequest
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Name is required",
		})
	}

	var id int
	err := s.db.DB.QueryRowContext(c.Context(),
		`INSERT INTO collections (name, user_id) VALUES ($1, $2) RETURNING id`,
		req.Name, req.UserID,
	).Scan(&id)
	if err != nil {
		s.logger.Error("Failed to create collection", "error", err, "name", req.Name)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create collection",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id, "name": req.Name})
}

// handleDeleteCollection removes a collection and everything under it:
// chunks first so a concurrent search cannot surface orphans, then documents,
// then the collection row.
func (s *Server) handleDeleteCollection(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid collection ID",
		})
	}

	if _, err := s.db.DB.ExecContext(c.Context(),
		`DELETE FROM chunks WHERE collection_id = $1`, id); err != nil {
		s.logger.Error("Failed to delete chunks", "error", err, "collection_id", id)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete collection",
		})
	}
	if _, err := s.db.DB.ExecContext(c.Context(),
		`DELETE FROM documents WHERE collection_id = $1`, id); err != nil {
		s.logger.Error("Failed to delete documents", "error", err, "collection_id", id)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete collection",
		})
	}

	res, err := s.db.DB.ExecContext(c.Context(),
		`DELETE FROM collections WHERE id = $1`, id)
	if err != nil {
		s.logger.Error("Failed to delete collection", "error", err, "collection_id", id)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete collection",
		})
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Collection not found",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) handleDeleteDocument(c *fiber.Ctx) error {
	docID := c.Params("id")

	if _, err := s.db.DB.ExecContext(c.Context(),
		`DELETE FROM chunks WHERE document_id = $1`, docID); err != nil {
		s.logger.Error("Failed to delete chunks", "error", err, "document_id", docID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete document",
		})
	}

	res, err := s.db.DB.ExecContext(c.Context(),
		`DELETE FROM documents WHERE id = $1`, docID)
	if err != nil {
		s.logger.Error("Failed to delete document", "error", err, "document_id", docID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete document",
		})
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Document not found",
		})
	}

	s.db.Redis.Del(c.Context(), fmt.Sprintf("doc:%s", docID))

	return c.JSON(fiber.Map{"success": true})
}
