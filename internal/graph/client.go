// Package graph talks to the Neo4j property graph: query explain and execution,
// user lookup, schema introspection and the native hybrid entry-node index.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Config holds the Neo4j connection settings.
type Config struct {
	URI                     string
	Username                string
	Password                string
	Database                string
	MaxConnectionPoolSize   int
	ConnectionTimeout       time.Duration
	MaxTransactionRetryTime time.Duration
}

// Validate checks the connection settings.
func (c Config) Validate() error {
	switch {
	case c.URI == "":
		return fmt.Errorf("uri is required: %w", ErrInvalidConfig)
	case c.Username == "":
		return fmt.Errorf("username is required: %w", ErrInvalidConfig)
	case c.ConnectionTimeout <= 0:
		return fmt.Errorf("connection timeout must be positive: %w", ErrInvalidConfig)
	case c.MaxTransactionRetryTime < 0:
		return fmt.Errorf("max transaction retry time must not be negative: %w", ErrInvalidConfig)
	}
	return nil
}

// Client is a read-only Neo4j client shared by all requests.
type Client struct {
	cfg    Config
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// NewClient creates a client. Connect must be called before use.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, logger: logger}, nil
}

const (
	connectAttempts  = 5
	connectBaseDelay = 100 * time.Millisecond
)

// Connect opens the driver and verifies connectivity, backing off exponentially between attempts.
func (c *Client) Connect(ctx context.Context) error {
	auth := neo4j.BasicAuth(c.cfg.Username, c.cfg.Password, "")
	configure := func(nc *neo4j.Config) {
		if c.cfg.MaxConnectionPoolSize > 0 {
			nc.MaxConnectionPoolSize = c.cfg.MaxConnectionPoolSize
		}
		nc.ConnectionAcquisitionTimeout = c.cfg.ConnectionTimeout
		// transient failures inside managed transactions are retried by the driver up to this bound
		nc.MaxTransactionRetryTime = c.cfg.MaxTransactionRetryTime
	}

	var lastErr error
	delay := connectBaseDelay
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		driver, err := neo4j.NewDriverWithContext(c.cfg.URI, auth, configure)
		if err == nil {
			if err = driver.VerifyConnectivity(ctx); err == nil {
				c.driver = driver
				c.logger.Info("connected to neo4j", zap.String("uri", c.cfg.URI), zap.Int("attempt", attempt))
				return nil
			}
			_ = driver.Close(ctx)
		}
		lastErr = err

		c.logger.Warn("neo4j connect attempt failed", zap.Int("attempt", attempt), zap.Error(err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return &Error{Op: OpConnect, Err: ctx.Err()}
		}
		delay *= 2
		if delay > c.cfg.ConnectionTimeout {
			delay = c.cfg.ConnectionTimeout
		}
	}

	return &Error{Op: OpConnect, Err: fmt.Errorf("failed after %d attempts: %w", connectAttempts, lastErr)}
}

// Close releases the driver.
func (c *Client) Close(ctx context.Context) error {
	if c.driver == nil {
		return nil
	}
	if err := c.driver.Close(ctx); err != nil {
		return fmt.Errorf("close neo4j driver: %w", err)
	}
	c.driver = nil
	return nil
}

// HealthCheck verifies connectivity.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.driver == nil {
		return ErrNotConnected
	}
	if err := c.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("verify connectivity: %w", err)
	}
	return nil
}

// read runs cypher in a managed read transaction and returns the rows with
// graph values converted to plain maps.
func (c *Client) read(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	if c.driver == nil {
		return nil, ErrNotConnected
	}

	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.cfg.Database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	rows, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		return convertRecords(records), nil
	})
	if err != nil {
		return nil, err
	}
	return rows.([]map[string]any), nil
}
