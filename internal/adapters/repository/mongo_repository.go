package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	habitsCollection      = "habits"
	recordsCollection     = "records"
	settingsCollection    = "user_settings"
	mongoOperationTimeout = 5 * time.Second
)

// ConnectMongo dials the deployment and verifies it answers a ping.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOperationTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("repository: mongo connect failed: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("repository: mongo ping failed: %w", err)
	}
	return client, nil
}

// EnsureMongoIndexes creates the indexes the repositories rely on. The unique
// (habit_id, date) index is what makes completion inserts idempotent.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(habitsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "archived", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "reminder.enabled", Value: 1}, {Key: "user_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("repository: habit indexes failed: %w", err)
	}

	_, err = db.Collection(recordsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "habit_id", Value: 1}, {Key: "date", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "date", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("repository: record indexes failed: %w", err)
	}

	_, err = db.Collection(settingsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("repository: settings index failed: %w", err)
	}
	return nil
}

// Dates are stored as YYYY-MM-DD strings so range filters compare lexically.

func dateString(d *domain.Date) *string {
	if d == nil || d.IsZero() {
		return nil
	}
	s := d.String()
	return &s
}

func parseDateString(s *string) (*domain.Date, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := domain.ParseDate(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

type reminderDocument struct {
	Enabled      bool    `bson:"enabled"`
	Time         string  `bson:"time"`
	LastSentDate *string `bson:"last_sent_date"`
}

type habitDocument struct {
	ID              string              `bson:"_id"`
	UserID          int64               `bson:"user_id"`
	Name            string              `bson:"name"`
	Emoji           string              `bson:"emoji"`
	Description     string              `bson:"description"`
	StartDate       string              `bson:"start_date"`
	TargetDate      *string             `bson:"target_date"`
	Archived        bool                `bson:"archived"`
	Repeat          domain.RepeatConfig `bson:"repeat"`
	Reminder        reminderDocument    `bson:"reminder"`
	CurrentStreak   int                 `bson:"current_streak"`
	BestStreak      int                 `bson:"best_streak"`
	LastCompletedOn *string             `bson:"last_completed_on"`
	CreatedAt       time.Time           `bson:"created_at"`
	UpdatedAt       time.Time           `bson:"updated_at"`
}

func toHabitDocument(h *domain.Habit) habitDocument {
	return habitDocument{
		ID:          h.ID,
		UserID:      h.UserID,
		Name:        h.Name,
		Emoji:       h.Emoji,
		Description: h.Description,
		StartDate:   h.StartDate.String(),
		TargetDate:  dateString(h.TargetDate),
		Archived:    h.Archived,
		Repeat:      h.Repeat,
		Reminder: reminderDocument{
			Enabled:      h.Reminder.Enabled,
			Time:         h.Reminder.Time,
			LastSentDate: dateString(h.Reminder.LastSentDate),
		},
		CurrentStreak:   h.CurrentStreak,
		BestStreak:      h.BestStreak,
		LastCompletedOn: dateString(h.LastCompletedOn),
		CreatedAt:       h.CreatedAt,
		UpdatedAt:       h.UpdatedAt,
	}
}

func (doc habitDocument) toDomain() (*domain.Habit, error) {
	start, err := domain.ParseDate(doc.StartDate)
	if err != nil {
		return nil, fmt.Errorf("habit %s start_date: %w", doc.ID, err)
	}
	target, err := parseDateString(doc.TargetDate)
	if err != nil {
		return nil, fmt.Errorf("habit %s target_date: %w", doc.ID, err)
	}
	sent, err := parseDateString(doc.Reminder.LastSentDate)
	if err != nil {
		return nil, fmt.Errorf("habit %s last_sent_date: %w", doc.ID, err)
	}
	last, err := parseDateString(doc.LastCompletedOn)
	if err != nil {
		return nil, fmt.Errorf("habit %s last_completed_on: %w", doc.ID, err)
	}

	return &domain.Habit{
		ID:          doc.ID,
		UserID:      doc.UserID,
		Name:        doc.Name,
		Emoji:       doc.Emoji,
		Description: doc.Description,
		StartDate:   start,
		TargetDate:  target,
		Archived:    doc.Archived,
		Repeat:      doc.Repeat,
		Reminder: domain.Reminder{
			Enabled:      doc.Reminder.Enabled,
			Time:         doc.Reminder.Time,
			LastSentDate: sent,
		},
		CurrentStreak:   doc.CurrentStreak,
		BestStreak:      doc.BestStreak,
		LastCompletedOn: last,
		CreatedAt:       doc.CreatedAt.UTC(),
		UpdatedAt:       doc.UpdatedAt.UTC(),
	}, nil
}

type MongoHabitRepository struct {
	coll *mongo.Collection
}

func NewMongoHabitRepository(db *mongo.Database) *MongoHabitRepository {
	return &MongoHabitRepository{coll: db.Collection(habitsCollection)}
}

func (r *MongoHabitRepository) Create(ctx context.Context, h *domain.Habit) error {
	if _, err := r.coll.InsertOne(ctx, toHabitDocument(h)); err != nil {
		return fmt.Errorf("repository: create habit failed: %w", err)
	}
	return nil
}

func (r *MongoHabitRepository) GetByID(ctx context.Context, id string, userID int64) (*domain.Habit, error) {
	var doc habitDocument
	err := r.coll.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrHabitNotFound
		}
		return nil, fmt.Errorf("repository: get habit failed: %w", err)
	}
	return doc.toDomain()
}

func (r *MongoHabitRepository) ListByUserID(ctx context.Context, userID int64, includeArchived bool) ([]*domain.Habit, error) {
	filter := bson.M{"user_id": userID}
	if !includeArchived {
		filter["archived"] = false
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("repository: list habits failed: %w", err)
	}
	var docs []habitDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("repository: decode habits failed: %w", err)
	}

	habits := make([]*domain.Habit, 0, len(docs))
	for _, doc := range docs {
		h, err := doc.toDomain()
		if err != nil {
			return nil, fmt.Errorf("repository: decode habit failed: %w", err)
		}
		habits = append(habits, h)
	}
	return habits, nil
}

func (r *MongoHabitRepository) ListReminderUserIDs(ctx context.Context) ([]int64, error) {
	values, err := r.coll.Distinct(ctx, "user_id", bson.M{"reminder.enabled": true, "archived": false})
	if err != nil {
		return nil, fmt.Errorf("repository: list reminder users failed: %w", err)
	}

	ids := make([]int64, 0, len(values))
	for _, v := range values {
		switch id := v.(type) {
		case int64:
			ids = append(ids, id)
		case int32:
			ids = append(ids, int64(id))
		default:
			return nil, fmt.Errorf("repository: unexpected user_id type %T", v)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *MongoHabitRepository) Update(ctx context.Context, h *domain.Habit) error {
	doc := toHabitDocument(h)
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}

	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": h.ID, "user_id": h.UserID},
		bson.M{"$set": bson.M{
			"name":        doc.Name,
			"emoji":       doc.Emoji,
			"description": doc.Description,
			"start_date":  doc.StartDate,
			"target_date": doc.TargetDate,
			"archived":    doc.Archived,
			"repeat":      doc.Repeat,
			"reminder":    doc.Reminder,
			"updated_at":  doc.UpdatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("repository: update habit failed: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrHabitNotFound
	}
	return nil
}

func (r *MongoHabitRepository) UpdateStreak(ctx context.Context, id string, state domain.StreakState) error {
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"current_streak":          state.Current,
			"best_streak":             state.Best,
			"last_completed_on":       dateString(state.LastCompletedOn),
			"reminder.last_sent_date": dateString(state.ReminderSentOn),
		}},
	)
	if err != nil {
		return fmt.Errorf("repository: update streak failed: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrHabitNotFound
	}
	return nil
}

func (r *MongoHabitRepository) SetReminderSentDate(ctx context.Context, id string, day *domain.Date) error {
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"reminder.last_sent_date": dateString(day)}},
	)
	if err != nil {
		return fmt.Errorf("repository: set reminder gate failed: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrHabitNotFound
	}
	return nil
}

func (r *MongoHabitRepository) Delete(ctx context.Context, id string, userID int64) error {
	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return fmt.Errorf("repository: delete habit failed: %w", err)
	}
	if result.DeletedCount == 0 {
		return domain.ErrHabitNotFound
	}
	return nil
}

type recordDocument struct {
	ID        string    `bson:"_id"`
	HabitID   string    `bson:"habit_id"`
	UserID    int64     `bson:"user_id"`
	Date      string    `bson:"date"`
	Status    string    `bson:"status"`
	CreatedAt time.Time `bson:"created_at"`
}

type MongoCompletionRepository struct {
	coll *mongo.Collection
}

func NewMongoCompletionRepository(db *mongo.Database) *MongoCompletionRepository {
	return &MongoCompletionRepository{coll: db.Collection(recordsCollection)}
}

// Insert upserts with $setOnInsert so an existing record is left untouched.
// Two racing upserts can both miss the filter; the loser hits the unique
// index and is reported as a duplicate.
func (r *MongoCompletionRepository) Insert(ctx context.Context, c *domain.Completion) (bool, error) {
	if err := c.Validate(); err != nil {
		return false, err
	}

	day := c.Date.String()
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"habit_id": c.HabitID, "date": day},
		bson.M{"$setOnInsert": bson.M{
			"_id":        c.ID,
			"user_id":    c.UserID,
			"status":     c.Status,
			"created_at": c.CreatedAt,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("repository: insert completion failed: %w", err)
	}
	return result.UpsertedCount == 1, nil
}

func (r *MongoCompletionRepository) Delete(ctx context.Context, habitID string, userID int64, day domain.Date) (bool, error) {
	result, err := r.coll.DeleteOne(ctx, bson.M{"habit_id": habitID, "user_id": userID, "date": day.String()})
	if err != nil {
		return false, fmt.Errorf("repository: delete completion failed: %w", err)
	}
	return result.DeletedCount > 0, nil
}

func (r *MongoCompletionRepository) DeleteByHabit(ctx context.Context, habitID string, userID int64) error {
	if _, err := r.coll.DeleteMany(ctx, bson.M{"habit_id": habitID, "user_id": userID}); err != nil {
		return fmt.Errorf("repository: delete habit completions failed: %w", err)
	}
	return nil
}

func (r *MongoCompletionRepository) Exists(ctx context.Context, habitID string, userID int64, day domain.Date) (bool, error) {
	n, err := r.coll.CountDocuments(ctx,
		bson.M{"habit_id": habitID, "user_id": userID, "date": day.String()},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, fmt.Errorf("repository: completion lookup failed: %w", err)
	}
	return n > 0, nil
}

func (r *MongoCompletionRepository) ListDates(ctx context.Context, habitID string, upTo domain.Date, limit int) ([]domain.Date, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: -1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"date": 1})

	cursor, err := r.coll.Find(ctx, bson.M{"habit_id": habitID, "date": bson.M{"$lte": upTo.String()}}, opts)
	if err != nil {
		return nil, fmt.Errorf("repository: list completion dates failed: %w", err)
	}
	var docs []recordDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("repository: decode completion dates failed: %w", err)
	}

	dates := make([]domain.Date, 0, len(docs))
	for _, doc := range docs {
		d, err := domain.ParseDate(doc.Date)
		if err != nil {
			return nil, fmt.Errorf("repository: completion date %q: %w", doc.Date, err)
		}
		dates = append(dates, d)
	}
	return dates, nil
}

func (r *MongoCompletionRepository) ListByUserAndRange(ctx context.Context, userID int64, from, to domain.Date) ([]*domain.Completion, error) {
	filter := bson.M{
		"user_id": userID,
		"date":    bson.M{"$gte": from.String(), "$lte": to.String()},
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "habit_id", Value: 1}})

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("repository: list completions failed: %w", err)
	}
	var docs []recordDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("repository: decode completions failed: %w", err)
	}

	out := make([]*domain.Completion, 0, len(docs))
	for _, doc := range docs {
		d, err := domain.ParseDate(doc.Date)
		if err != nil {
			return nil, fmt.Errorf("repository: completion date %q: %w", doc.Date, err)
		}
		out = append(out, &domain.Completion{
			ID:        doc.ID,
			HabitID:   doc.HabitID,
			UserID:    doc.UserID,
			Date:      d,
			Status:    doc.Status,
			CreatedAt: doc.CreatedAt.UTC(),
		})
	}
	return out, nil
}

type settingsDocument struct {
	UserID              int64     `bson:"user_id"`
	Timezone            string    `bson:"timezone"`
	DefaultReminderTime string    `bson:"default_reminder_time"`
	CreatedAt           time.Time `bson:"created_at"`
	UpdatedAt           time.Time `bson:"updated_at"`
}

type MongoUserSettingsRepository struct {
	coll *mongo.Collection
}

func NewMongoUserSettingsRepository(db *mongo.Database) *MongoUserSettingsRepository {
	return &MongoUserSettingsRepository{coll: db.Collection(settingsCollection)}
}

func (r *MongoUserSettingsRepository) Get(ctx context.Context, userID int64) (*domain.UserSettings, error) {
	var doc settingsDocument
	if err := r.coll.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSettingsNotFound
		}
		return nil, fmt.Errorf("repository: get settings failed: %w", err)
	}
	return &domain.UserSettings{
		UserID:              doc.UserID,
		Timezone:            doc.Timezone,
		DefaultReminderTime: doc.DefaultReminderTime,
		CreatedAt:           doc.CreatedAt.UTC(),
		UpdatedAt:           doc.UpdatedAt.UTC(),
	}, nil
}

func (r *MongoUserSettingsRepository) Upsert(ctx context.Context, s *domain.UserSettings) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"user_id": s.UserID},
		bson.M{
			"$set": bson.M{
				"timezone":              s.Timezone,
				"default_reminder_time": s.DefaultReminderTime,
				"updated_at":            s.UpdatedAt,
			},
			"$setOnInsert": bson.M{"created_at": s.CreatedAt},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("repository: upsert settings failed: %w", err)
	}
	return nil
}
