package connection

import (
	"context"
	"fmt"

	"github.com/syssam/velox"
	"github.com/syssam/velox/dialect"
)

// txState holds the fields that change once a transaction is open;
// Connection delegates to the tx's dialect.Tx once depth > 0 so every
// statement after BeginTransaction participates in the same transaction.
type txState struct {
	tx    dialect.Tx
	depth int
}

// BeginTransaction starts a new transaction, or — if one is already open —
// pushes a new savepoint: nested transactions compose via savepoints
// rather than failing or silently flattening.
func (c *Connection) BeginTransaction(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.txDepth == 0 {
		tx, err := c.drv.Tx(ctx)
		if err != nil {
			return velox.NewConnectionLostError(c.name, err)
		}
		c.tx = &txState{tx: tx, depth: 0}
		c.txDepth = 1
		return nil
	}
	c.txDepth++
	return c.execOnTx(ctx, "savepoint "+c.savepointName())
}

// Commit commits the transaction, or releases the innermost savepoint if
// nested.
func (c *Connection) Commit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.txDepth == 0 {
		return velox.NewLogicError("commit", "no transaction is open")
	}
	if c.txDepth == 1 {
		err := c.tx.tx.Commit()
		c.tx = nil
		c.txDepth = 0
		return err
	}
	if err := c.execOnTx(ctx, "release savepoint "+c.savepointName()); err != nil {
		return err
	}
	c.txDepth--
	return nil
}

// RollBack rolls back the transaction, or rolls back to the innermost
// savepoint if nested.
func (c *Connection) RollBack(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.txDepth == 0 {
		return velox.NewLogicError("rollBack", "no transaction is open")
	}
	if c.txDepth == 1 {
		err := c.tx.tx.Rollback()
		c.tx = nil
		c.txDepth = 0
		return err
	}
	if err := c.execOnTx(ctx, "rollback to savepoint "+c.savepointName()); err != nil {
		return err
	}
	c.txDepth--
	return nil
}

// TransactionLevel reports the current nesting depth (0 = no transaction).
func (c *Connection) TransactionLevel() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txDepth
}

// savepointName names the savepoint for the current depth; caller holds c.mu.
func (c *Connection) savepointName() string {
	return fmt.Sprintf("velox_%d", c.txDepth)
}

func (c *Connection) execOnTx(ctx context.Context, sql string) error {
	if c.tx == nil {
		return velox.NewLogicError("transaction", "no transaction is open")
	}
	return c.tx.tx.Exec(ctx, sql, []any{}, nil)
}

// Transaction runs fn within a transaction (nesting via savepoints if one
// is already open), committing on success and rolling back if fn returns
// an error.
func (c *Connection) Transaction(ctx context.Context, fn func(*Connection) error) (err error) {
	if err = c.BeginTransaction(ctx); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = c.RollBack(ctx)
			panic(r)
		}
	}()
	if err = fn(c); err != nil {
		if rbErr := c.RollBack(ctx); rbErr != nil {
			return rbErr
		}
		return err
	}
	return c.Commit(ctx)
}
