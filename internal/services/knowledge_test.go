package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/moshaveran/moshaver-backend/internal/repos"
	"github.com/moshaveran/moshaver-backend/internal/types"
)

func newKnowledgeService(t *testing.T, db *gorm.DB) KnowledgeService {
	t.Helper()
	log := testLogger(t)
	return NewKnowledgeService(
		db,
		log,
		repos.NewKnowledgeRepo(db, log),
		repos.NewChatRepo(db, log),
		repos.NewMessageRepo(db, log),
		KeywordClassifier(),
	)
}

func seedChat(t *testing.T, db *gorm.DB, messages ...*types.Message) uuid.UUID {
	t.Helper()
	log := testLogger(t)
	chatRepo := repos.NewChatRepo(db, log)
	messageRepo := repos.NewMessageRepo(db, log)

	chat := &types.Chat{Title: "test"}
	if err := chatRepo.Create(context.Background(), nil, chat); err != nil {
		t.Fatalf("failed to create chat: %v", err)
	}
	base := time.Now().UTC().Add(-time.Hour)
	for i, msg := range messages {
		msg.ChatID = chat.ID
		msg.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := messageRepo.Create(context.Background(), nil, msg); err != nil {
			t.Fatalf("failed to create message: %v", err)
		}
	}
	return chat.ID
}

const (
	longQuestion = "چطور بودجه بازار جدید را تنظیم کنم؟"
	longAnswer   = "برای تنظیم بودجه ابتدا هزینه‌های ثابت را فهرست کنید و سپس سهم بازاریابی را مشخص کنید."
)

func TestExtractPairsAdjacency(t *testing.T) {
	db := testDB(t)
	ks := newKnowledgeService(t, db)

	// user, user, model: only the second user message pairs with the
	// reply. The trailing model, user sequence contributes nothing.
	chatID := seedChat(t, db,
		&types.Message{Role: types.RoleUser, Content: "سوال اول من درباره سرمایه است"},
		&types.Message{Role: types.RoleUser, Content: longQuestion},
		&types.Message{Role: types.RoleModel, Content: longAnswer},
		&types.Message{Role: types.RoleModel, Content: longAnswer},
		&types.Message{Role: types.RoleUser, Content: "یک سوال دیگر درباره فروش دارم"},
	)

	pairs, err := ks.ExtractPairs(context.Background(), chatID)
	if err != nil {
		t.Fatalf("ExtractPairs failed: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}
	if pairs[0].Question != longQuestion {
		t.Fatalf("pair question = %q, want %q", pairs[0].Question, longQuestion)
	}
	if pairs[0].Answer != longAnswer {
		t.Fatalf("pair answer = %q, want %q", pairs[0].Answer, longAnswer)
	}
	if pairs[0].Category != types.CategoryFinance {
		t.Fatalf("pair category = %q, want finance", pairs[0].Category)
	}
}

func TestExtractPairsLengthFilter(t *testing.T) {
	db := testDB(t)
	ks := newKnowledgeService(t, db)

	chatID := seedChat(t, db,
		&types.Message{Role: types.RoleUser, Content: "کوتاه"},
		&types.Message{Role: types.RoleModel, Content: longAnswer},
		&types.Message{Role: types.RoleUser, Content: longQuestion},
		&types.Message{Role: types.RoleModel, Content: "جواب کوتاه"},
	)

	pairs, err := ks.ExtractPairs(context.Background(), chatID)
	if err != nil {
		t.Fatalf("ExtractPairs failed: %v", err)
	}
	if len(pairs) != 0 {
		t.Fatalf("expected short messages to be skipped, got %d pairs", len(pairs))
	}
}

func TestSavePairDedup(t *testing.T) {
	db := testDB(t)
	ks := newKnowledgeService(t, db)
	ctx := context.Background()

	pair := KnowledgePair{Question: longQuestion, Answer: longAnswer, Category: types.CategoryFinance}
	for i := 0; i < 3; i++ {
		if err := ks.SavePair(ctx, pair); err != nil {
			t.Fatalf("SavePair call %d failed: %v", i+1, err)
		}
	}

	var rows []types.LearnedKnowledge
	if err := db.Where("question = ?", longQuestion).Find(&rows).Error; err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one row, got %d", len(rows))
	}
	if rows[0].QualityScore != 3 {
		t.Fatalf("quality score = %d, want 3", rows[0].QualityScore)
	}
	if rows[0].UsageCount != 0 {
		t.Fatalf("usage count = %d, want 0", rows[0].UsageCount)
	}
}

func TestRetrieveMonotonicUsage(t *testing.T) {
	db := testDB(t)
	ks := newKnowledgeService(t, db)
	ctx := context.Background()

	if err := ks.SavePair(ctx, KnowledgePair{Question: longQuestion, Answer: longAnswer, Category: types.CategoryFinance}); err != nil {
		t.Fatalf("SavePair failed: %v", err)
	}

	const n = 4
	for i := 0; i < n; i++ {
		block, err := ks.Retrieve(ctx, "سوالی درباره بودجه شرکت دارم", 5)
		if err != nil {
			t.Fatalf("Retrieve failed: %v", err)
		}
		if !strings.Contains(block, longQuestion) {
			t.Fatalf("retrieved block missing stored question:\n%s", block)
		}
	}

	var row types.LearnedKnowledge
	if err := db.Where("question = ?", longQuestion).First(&row).Error; err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if row.UsageCount != n {
		t.Fatalf("usage count = %d, want %d", row.UsageCount, n)
	}
}

func TestRetrieveCategoryIsolation(t *testing.T) {
	db := testDB(t)
	ks := newKnowledgeService(t, db)
	ctx := context.Background()

	if err := ks.SavePair(ctx, KnowledgePair{
		Question: "بهترین کمپین تبلیغاتی برای برند ما چیست؟",
		Answer:   longAnswer,
		Category: types.CategoryMarketing,
	}); err != nil {
		t.Fatalf("SavePair failed: %v", err)
	}

	// A finance question must never pull a marketing row.
	block, err := ks.Retrieve(ctx, "سوالی درباره بودجه شرکت دارم", 5)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if block != "" {
		t.Fatalf("expected no retrieval across categories, got:\n%s", block)
	}
}

func TestRetrieveOrdering(t *testing.T) {
	db := testDB(t)
	ks := newKnowledgeService(t, db)
	ctx := context.Background()

	low := KnowledgePair{Question: "سوال بودجه شماره یک در مورد هزینه", Answer: longAnswer, Category: types.CategoryFinance}
	high := KnowledgePair{Question: "سوال بودجه شماره دو در مورد هزینه", Answer: longAnswer, Category: types.CategoryFinance}
	if err := ks.SavePair(ctx, low); err != nil {
		t.Fatalf("SavePair failed: %v", err)
	}
	// Saving twice more gives "high" a quality score of 3.
	for i := 0; i < 3; i++ {
		if err := ks.SavePair(ctx, high); err != nil {
			t.Fatalf("SavePair failed: %v", err)
		}
	}

	block, err := ks.Retrieve(ctx, "سوالی درباره بودجه شرکت دارم", 5)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	highIdx := strings.Index(block, high.Question)
	lowIdx := strings.Index(block, low.Question)
	if highIdx < 0 || lowIdx < 0 {
		t.Fatalf("expected both rows in block:\n%s", block)
	}
	if highIdx > lowIdx {
		t.Fatalf("higher-quality pair should come first:\n%s", block)
	}
}

func TestRunBatchLearningCountsAndQuirk(t *testing.T) {
	db := testDB(t)
	ks := newKnowledgeService(t, db)
	ctx := context.Background()

	seedChat(t, db,
		&types.Message{Role: types.RoleUser, Content: longQuestion},
		&types.Message{Role: types.RoleModel, Content: longAnswer},
	)

	count, err := ks.RunBatchLearning(ctx)
	if err != nil {
		t.Fatalf("RunBatchLearning failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("first run saved %d, want 1", count)
	}

	// Re-running over an unchanged chat set adds no rows but still bumps
	// the quality score of the extracted question.
	count, err = ks.RunBatchLearning(ctx)
	if err != nil {
		t.Fatalf("second RunBatchLearning failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("second run saved %d, want 1", count)
	}

	var rows []types.LearnedKnowledge
	if err := db.Find(&rows).Error; err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one stored row after reruns, got %d", len(rows))
	}
	if rows[0].QualityScore != 2 {
		t.Fatalf("quality score after rerun = %d, want 2", rows[0].QualityScore)
	}
}

func TestRunBatchLearningDedupsAcrossChats(t *testing.T) {
	db := testDB(t)
	ks := newKnowledgeService(t, db)
	ctx := context.Background()

	// Sixteen chats all containing the identical question, harvested by
	// the parallel batch workers. The save path must collapse them into
	// one row no matter how the workers interleave.
	const chats = 16
	for i := 0; i < chats; i++ {
		seedChat(t, db,
			&types.Message{Role: types.RoleUser, Content: longQuestion},
			&types.Message{Role: types.RoleModel, Content: longAnswer},
		)
	}

	count, err := ks.RunBatchLearning(ctx)
	if err != nil {
		t.Fatalf("RunBatchLearning failed: %v", err)
	}
	if count != chats {
		t.Fatalf("saved count = %d, want %d", count, chats)
	}

	var rows []types.LearnedKnowledge
	if err := db.Where("question = ?", longQuestion).Find(&rows).Error; err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one row for identical question, got %d", len(rows))
	}
	if rows[0].QualityScore != chats {
		t.Fatalf("quality score = %d, want %d", rows[0].QualityScore, chats)
	}

	log := testLogger(t)
	stored, err := repos.NewKnowledgeRepo(db, log).GetByQuestion(ctx, nil, longQuestion)
	if err != nil {
		t.Fatalf("GetByQuestion failed: %v", err)
	}
	if stored.Answer != longAnswer {
		t.Fatalf("stored answer = %q, want %q", stored.Answer, longAnswer)
	}
}

func TestKnowledgeDegradesWithoutStorage(t *testing.T) {
	ks := newKnowledgeService(t, nil)
	ctx := context.Background()

	pairs, err := ks.ExtractPairs(ctx, uuid.New())
	if err != nil || len(pairs) != 0 {
		t.Fatalf("ExtractPairs without storage = (%v, %v), want empty with no error", pairs, err)
	}

	block, err := ks.Retrieve(ctx, longQuestion, 5)
	if err != nil || block != "" {
		t.Fatalf("Retrieve without storage = (%q, %v), want empty with no error", block, err)
	}

	count, err := ks.RunBatchLearning(ctx)
	if err != nil || count != 0 {
		t.Fatalf("RunBatchLearning without storage = (%d, %v), want zero with no error", count, err)
	}
}
