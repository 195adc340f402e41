package services

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ttss_backend/models"
)

// SignalArchive writes per-run signal snapshots to MongoDB Atlas so old
// runs can be pruned from Postgres without losing history. Optional: a
// missing URI disables archiving.
type SignalArchive struct {
	client   *mongo.Client
	database string
}

var signalArchive *SignalArchive

// InitSignalArchive connects to MongoDB. Returns nil without error when no
// URI is configured.
func InitSignalArchive(uri string) (*SignalArchive, error) {
	if uri == "" {
		log.Println("MongoDB URI not configured, signal archive disabled")
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	signalArchive = &SignalArchive{client: client, database: "ttss_archive"}
	log.Println("MongoDB signal archive connected")
	return signalArchive, nil
}

// GetSignalArchive returns the global archive, nil when disabled
func GetSignalArchive() *SignalArchive {
	return signalArchive
}

// Close disconnects the client
func (a *SignalArchive) Close() {
	if a == nil || a.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.client.Disconnect(ctx); err != nil {
		log.Printf("MongoDB disconnect error: %v", err)
	}
}

// archivedRun is the document stored per calculation run
type archivedRun struct {
	TradeDate    string                 `bson:"trade_date"`
	StrategyType string                 `bson:"strategy_type"`
	Status       string                 `bson:"status"`
	TotalStocks  int                    `bson:"total_stocks"`
	TaggedStocks int                    `bson:"tagged_stocks"`
	DurationMs   int64                  `bson:"duration_ms"`
	Summaries    []models.SignalSummary `bson:"summaries"`
	ArchivedAt   time.Time              `bson:"archived_at"`
}

// ArchiveRun stores one run snapshot. Implements signals.Archiver.
func (a *SignalArchive) ArchiveRun(ctx context.Context, runLog models.CalculationLog, summaries []models.SignalSummary) error {
	if a == nil || a.client == nil {
		return nil
	}
	doc := archivedRun{
		TradeDate:    runLog.TradeDate,
		StrategyType: string(runLog.StrategyType),
		Status:       runLog.Status,
		TotalStocks:  runLog.TotalStocks,
		TaggedStocks: runLog.TaggedStocks,
		DurationMs:   runLog.DurationMs,
		Summaries:    summaries,
		ArchivedAt:   time.Now(),
	}
	_, err := a.client.Database(a.database).Collection("signal_runs").InsertOne(ctx, doc)
	return err
}
