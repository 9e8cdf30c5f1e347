package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tvloc02/EventVer1-sub001/shared/logging"
)

// Collection names used when DB_DRIVER=mongo.
const (
	CollUsers              = "users"
	CollResetTokens        = "password_reset_tokens"
	CollResetAttempts      = "password_reset_attempts"
	CollVerificationTokens = "email_verification_tokens"
	CollLoginAttempts      = "login_attempts"
	CollAuditLogs          = "audit_logs"
)

// attemptRetention bounds how long login and reset attempts are kept; the
// lockout and rate-limit windows are far shorter.
const attemptRetention = 7 * 24 * time.Hour

func ConnectMongo(ctx context.Context, uri string, log logging.Logger) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Info(ctx, "mongodb connected")
	return client, nil
}

// EnsureMongoIndexes creates the unique and TTL indexes the account store
// relies on.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database, log logging.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	retention := int32(attemptRetention / time.Second)
	indexes := map[string][]mongo.IndexModel{
		CollUsers: {{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true),
		}},
		CollResetTokens: {
			{
				Keys:    bson.D{{Key: "token_hash", Value: 1}},
				Options: options.Index().SetName("token_hash_unique").SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}},
				Options: options.Index().SetName("user_id_index"),
			},
		},
		CollVerificationTokens: {{
			Keys:    bson.D{{Key: "token_hash", Value: 1}},
			Options: options.Index().SetName("token_hash_unique").SetUnique(true),
		}},
		CollLoginAttempts: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}, {Key: "created_at", Value: -1}},
				Options: options.Index().SetName("email_created_at"),
			},
			{
				Keys:    bson.D{{Key: "created_at", Value: 1}},
				Options: options.Index().SetName("created_at_ttl").SetExpireAfterSeconds(retention),
			},
		},
		CollResetAttempts: {{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetName("created_at_ttl").SetExpireAfterSeconds(retention),
		}},
		CollAuditLogs: {{
			Keys:    bson.D{{Key: "subject", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("subject_created_at"),
		}},
	}

	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
		log.Debug(ctx, "mongo indexes ensured", "collection", coll, "count", len(models))
	}
	return nil
}
