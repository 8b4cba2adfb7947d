package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/moshaveran/moshaver-backend/internal/logger"
	"github.com/moshaveran/moshaver-backend/internal/repos"
	"github.com/moshaveran/moshaver-backend/internal/types"
)

const (
	minQuestionLen = 10
	minAnswerLen   = 20

	defaultRetrieveLimit  = 5
	batchLearningWindow   = 24 * time.Hour
	batchLearningChatCap  = 50
	batchLearningParallel = 4
)

// KnowledgePair is a candidate question/answer extracted from a chat.
type KnowledgePair struct {
	Question string
	Answer   string
	Category types.Category
}

type KnowledgeService interface {
	ExtractPairs(ctx context.Context, chatID uuid.UUID) ([]KnowledgePair, error)
	SavePair(ctx context.Context, pair KnowledgePair) error
	Retrieve(ctx context.Context, question string, limit int) (string, error)
	RunBatchLearning(ctx context.Context) (int, error)
	ListPairs(ctx context.Context, category types.Category, limit int) ([]*types.LearnedKnowledge, error)
	DeletePair(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*types.KnowledgeStats, error)
	StartWorker(ctx context.Context, interval time.Duration)
}

type knowledgeService struct {
	db            *gorm.DB
	log           *logger.Logger
	knowledgeRepo repos.KnowledgeRepo
	chatRepo      repos.ChatRepo
	messageRepo   repos.MessageRepo
	classify      Classifier
}

func NewKnowledgeService(db *gorm.DB, log *logger.Logger, knowledgeRepo repos.KnowledgeRepo, chatRepo repos.ChatRepo, messageRepo repos.MessageRepo, classify Classifier) KnowledgeService {
	if classify == nil {
		classify = KeywordClassifier()
	}
	return &knowledgeService{
		db:            db,
		log:           log.With("service", "KnowledgeService"),
		knowledgeRepo: knowledgeRepo,
		chatRepo:      chatRepo,
		messageRepo:   messageRepo,
		classify:      classify,
	}
}

// ExtractPairs walks the chat transcript in order and pairs each user
// message with the model reply directly after it. Short questions and
// answers are skipped silently. With storage down it returns nothing.
func (ks *knowledgeService) ExtractPairs(ctx context.Context, chatID uuid.UUID) ([]KnowledgePair, error) {
	messages, err := ks.messageRepo.ListByChatID(ctx, nil, chatID)
	if err != nil {
		if errors.Is(err, repos.ErrStorageUnavailable) {
			return nil, nil
		}
		return nil, err
	}

	var pairs []KnowledgePair
	for i := 1; i < len(messages); i++ {
		prev, curr := messages[i-1], messages[i]
		if prev.Role != types.RoleUser || curr.Role != types.RoleModel {
			continue
		}
		if utf8.RuneCountInString(prev.Content) <= minQuestionLen {
			continue
		}
		if utf8.RuneCountInString(curr.Content) <= minAnswerLen {
			continue
		}
		pairs = append(pairs, KnowledgePair{
			Question: prev.Content,
			Answer:   curr.Content,
			Category: ks.classify(prev.Content),
		})
	}
	return pairs, nil
}

// SavePair deduplicates on the exact question string: a repeat bumps
// quality_score, a new question inserts with score 1. The dedup is a single
// upsert against the unique question index, so concurrent batch workers
// saving the same question cannot insert twice. Paraphrased questions are
// never merged; that policy lives in the classifier/dedup strategy and is
// kept as-is for compatibility.
func (ks *knowledgeService) SavePair(ctx context.Context, pair KnowledgePair) error {
	category := pair.Category
	if category == "" {
		category = ks.classify(pair.Question)
	}
	return ks.knowledgeRepo.Upsert(ctx, nil, &types.LearnedKnowledge{
		Question:     pair.Question,
		Answer:       pair.Answer,
		Category:     category,
		QualityScore: 1,
		UsageCount:   0,
	})
}

// Retrieve classifies the question and returns the top stored pairs of the
// same category as a prompt-ready text block. Every returned row has its
// usage counter bumped; retrieval mutates state by design. An empty string
// means nothing matched or storage is down.
func (ks *knowledgeService) Retrieve(ctx context.Context, question string, limit int) (string, error) {
	if limit <= 0 {
		limit = defaultRetrieveLimit
	}

	category := ks.classify(question)
	rows, err := ks.knowledgeRepo.TopByCategory(ctx, nil, category, 1, limit)
	if err != nil {
		if errors.Is(err, repos.ErrStorageUnavailable) {
			return "", nil
		}
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	if err := ks.knowledgeRepo.IncrementUsage(ctx, nil, ids); err != nil {
		ks.log.Warn("Failed to bump usage counters", "error", err)
	}

	var b strings.Builder
	b.WriteString("تجربیات مرتبط از گفتگوهای قبلی:\n\n")
	for i, row := range rows {
		fmt.Fprintf(&b, "%d. پرسش: %s\n   پاسخ: %s\n\n", i+1, row.Question, row.Answer)
	}
	return b.String(), nil
}

// RunBatchLearning harvests pairs from chats active in the last day, newest
// first, capped at 50 chats. Re-running on an unchanged chat set does not
// add rows but still bumps quality scores of the extracted questions.
func (ks *knowledgeService) RunBatchLearning(ctx context.Context) (int, error) {
	since := time.Now().UTC().Add(-batchLearningWindow)
	chats, err := ks.chatRepo.RecentUpdated(ctx, nil, since, batchLearningChatCap)
	if err != nil {
		if errors.Is(err, repos.ErrStorageUnavailable) {
			return 0, nil
		}
		return 0, err
	}

	var saved atomic.Int64
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(batchLearningParallel)

	for _, chat := range chats {
		chatID := chat.ID
		group.Go(func() error {
			pairs, err := ks.ExtractPairs(groupCtx, chatID)
			if err != nil {
				ks.log.Warn("Pair extraction failed", "chat_id", chatID, "error", err)
				return nil
			}
			for _, pair := range pairs {
				if err := ks.SavePair(groupCtx, pair); err != nil {
					ks.log.Warn("Failed to save learned pair", "chat_id", chatID, "error", err)
					continue
				}
				saved.Add(1)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return int(saved.Load()), err
	}

	ks.log.Info("Batch learning finished", "chats", len(chats), "saved", saved.Load())
	return int(saved.Load()), nil
}

func (ks *knowledgeService) ListPairs(ctx context.Context, category types.Category, limit int) ([]*types.LearnedKnowledge, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return ks.knowledgeRepo.List(ctx, nil, category, limit)
}

func (ks *knowledgeService) DeletePair(ctx context.Context, id uuid.UUID) error {
	return ks.knowledgeRepo.Delete(ctx, nil, id)
}

func (ks *knowledgeService) Stats(ctx context.Context) (*types.KnowledgeStats, error) {
	return ks.knowledgeRepo.Stats(ctx, nil)
}

// StartWorker runs batch learning on a fixed interval until ctx is done.
func (ks *knowledgeService) StartWorker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := ks.RunBatchLearning(ctx); err != nil {
					ks.log.Warn("Scheduled batch learning failed", "error", err)
				}
			}
		}
	}()
}
