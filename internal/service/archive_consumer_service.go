// FILE: internal/service/archive_consumer_service.go
package service

import (
	"context"
	"encoding/json"
	"log"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pgvector/pgvector-go"

	"ai-deepsearch-be/internal/mapper"
	"ai-deepsearch-be/internal/repository/contract"
	"ai-deepsearch-be/pkg/embedding"
	"ai-deepsearch-be/pkg/research"
	"ai-deepsearch-be/pkg/utils"
)

// IArchiveConsumerService persists completed research runs together with a
// report embedding so past runs can be found by similarity search.
type IArchiveConsumerService interface {
	Consume(ctx context.Context) error
}

type archiveConsumerService struct {
	pubSub            *gochannel.GoChannel
	topicName         string
	archiveRepo       contract.ArchiveRepository
	mapper            *mapper.SessionMapper
	embeddingProvider embedding.EmbeddingProvider
}

func NewArchiveConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	archiveRepo contract.ArchiveRepository,
	embeddingProvider embedding.EmbeddingProvider,
) IArchiveConsumerService {
	return &archiveConsumerService{
		pubSub:            pubSub,
		topicName:         topicName,
		archiveRepo:       archiveRepo,
		mapper:            mapper.NewSessionMapper(),
		embeddingProvider: embeddingProvider,
	}
}

func (cs *archiveConsumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *archiveConsumerService) processMessage(ctx context.Context, msg *message.Message) {
	var sess research.Session
	if err := json.Unmarshal(msg.Payload, &sess); err != nil {
		log.Printf("[ERROR] Failed to unmarshal research snapshot: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	log.Printf("[INFO] Archiving research session %s", sess.ID)

	archive, err := cs.mapper.ToArchive(&sess)
	if err != nil {
		log.Printf("[ERROR] Failed to map session %s for archival: %v", sess.ID, err)
		msg.Ack()
		return
	}

	// Embed the report so the archive is searchable. The first chunk is
	// enough, reports open with the executive summary.
	embedText := sess.FinalReport
	if embedText == "" {
		embedText = sess.Query
	}
	chunks := utils.SplitText(embedText, 1500, 200)
	if len(chunks) > 0 {
		res, err := cs.embeddingProvider.Generate(chunks[0], embedding.TaskDocument)
		if err != nil {
			log.Printf("[ERROR] Failed to embed report for session %s: %v", sess.ID, err)
			msg.Nack() // Nack for retriable errors
			return
		}
		vec := pgvector.NewVector(res.Embedding.Values)
		archive.Embedding = &vec
	}

	if err := cs.archiveRepo.Create(ctx, archive); err != nil {
		log.Printf("[ERROR] Failed to persist archive for session %s: %v", sess.ID, err)
		msg.Nack()
		return
	}

	log.Printf("[SUCCESS] Research session archived: %s", sess.ID)
	msg.Ack()
}
