package repository

import (
	"context"
	"time"

	"github.com/example/roomservice/pkg/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type MongoRepository struct {
	client   *mongo.Client
	database *mongo.Database
	config   *config.MongoDBConfig
}

func NewMongoRepository(cfg *config.MongoDBConfig) (*MongoRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}

	return &MongoRepository{
		client:   client,
		database: client.Database(cfg.Database),
		config:   cfg,
	}, nil
}

func (m *MongoRepository) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoRepository) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// AuditEntry records one status mutation.
type AuditEntry struct {
	ID        string    `bson:"_id,omitempty"`
	Service   string    `bson:"service"`
	Action    string    `bson:"action"`
	OrderID   string    `bson:"order_id"`
	HotelID   string    `bson:"hotel_id"`
	ActorID   string    `bson:"actor_id"`
	Data      bson.M    `bson:"data"`
	CreatedAt time.Time `bson:"created_at"`
}

const (
	AuditItemsWritten  = "items_status_written"
	AuditOrderPromoted = "order_status_promoted"
)

func (m *MongoRepository) Record(ctx context.Context, entry *AuditEntry) error {
	collection := m.database.Collection(m.config.Collection)
	entry.CreatedAt = time.Now()
	_, err := collection.InsertOne(ctx, entry)
	return err
}

func (m *MongoRepository) History(ctx context.Context, orderID string, limit int64) ([]*AuditEntry, error) {
	collection := m.database.Collection(m.config.Collection)

	filter := bson.M{"order_id": orderID}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []*AuditEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, err
	}

	return entries, nil
}

// LogAuditor writes audit entries to the service log when MongoDB is not
// configured.
type LogAuditor struct {
	logger *zap.Logger
}

func NewLogAuditor(logger *zap.Logger) *LogAuditor {
	return &LogAuditor{logger: logger.Named("audit")}
}

func (a *LogAuditor) Record(_ context.Context, entry *AuditEntry) error {
	a.logger.Info("Status audit",
		zap.String("action", entry.Action),
		zap.String("order_id", entry.OrderID),
		zap.String("hotel_id", entry.HotelID),
		zap.String("actor_id", entry.ActorID),
		zap.Any("data", entry.Data))
	return nil
}
