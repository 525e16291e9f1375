package config

import (
	"context"
	"crypto/tls"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NewMongo connects to MongoDB and pings it before returning the client.
func NewMongo(ctx context.Context, c Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	clientOpts := options.Client().ApplyURI(c.MongoURI).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1).SetStrict(true).SetDeprecationErrors(true)).
		SetServerSelectionTimeout(20 * time.Second).
		SetConnectTimeout(15 * time.Second).
		SetMaxPoolSize(10).
		SetMinPoolSize(1)

	if tc := mongoTLSConfig(c); tc != nil {
		clientOpts = clientOpts.SetTLSConfig(tc)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return client, nil
}

// mongoTLSConfig returns nil unless MONGO_FORCE_TLS_CONFIG is set, leaving the
// driver to derive TLS from the URI.
func mongoTLSConfig(c Config) *tls.Config {
	if !c.MongoForceTLS {
		return nil
	}
	return &tls.Config{
		InsecureSkipVerify: c.MongoInsecureTLS,
		MinVersion:         tls.VersionTLS12,
		MaxVersion:         tls.VersionTLS12,
	}
}
