package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgtype"
)

// fakeSession simulates the server side of cursors over a fixed result set.
type fakeSession struct {
	mu sync.Mutex

	rows    []Row
	columns []Column

	alive    bool
	inTx     bool
	commits  int
	cursors  map[string]int
	executed []string

	// failures maps a statement prefix to the error it returns.
	failures map[string]error

	watchers map[Disconnecter]struct{}
}

func newFakeSession(n int) *fakeSession {
	rows := make([]Row, n)
	for i := range rows {
		rows[i] = Row{int32(i + 1), fmt.Sprintf("row-%d", i+1)}
	}
	return &fakeSession{
		rows: rows,
		columns: []Column{
			{Name: "id", TypeOID: pgtype.Int4OID, DataType: "int4", OrdinalPos: 1},
			{Name: "label", TypeOID: pgtype.TextOID, DataType: "text", OrdinalPos: 2},
		},
		alive:    true,
		cursors:  map[string]int{},
		failures: map[string]error{},
		watchers: map[Disconnecter]struct{}{},
	}
}

func (f *fakeSession) failOn(prefix string, err error) {
	f.failures[prefix] = err
}

func (f *fakeSession) record(stmt string) error {
	f.executed = append(f.executed, stmt)
	for prefix, err := range f.failures {
		if strings.HasPrefix(stmt, prefix) {
			return err
		}
	}
	return nil
}

// ops returns the number of statements sent to the server.
func (f *fakeSession) ops() int {
	return len(f.executed)
}

func (f *fakeSession) count(prefix string) int {
	n := 0
	for _, s := range f.executed {
		if strings.HasPrefix(s, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeSession) Begin(_ context.Context) error {
	if f.inTx {
		return ErrTransactionActive
	}
	if err := f.record("BEGIN"); err != nil {
		return err
	}
	f.inTx = true
	return nil
}

func (f *fakeSession) Commit(_ context.Context) error {
	if err := f.record("COMMIT"); err != nil {
		return err
	}
	f.inTx = false
	f.commits++
	f.cursors = map[string]int{}
	return nil
}

func (f *fakeSession) Execute(_ context.Context, sql string) (int64, error) {
	if err := f.record(sql); err != nil {
		return 0, err
	}
	fields := strings.Fields(sql)
	switch fields[0] {
	case "BEGIN":
		f.inTx = true
	case "DECLARE":
		if !f.inTx {
			return 0, errors.New("DECLARE CURSOR can only be used in transaction blocks")
		}
		f.cursors[fields[1]] = 0
	case "MOVE":
		n, _ := strconv.Atoi(fields[2])
		f.cursors[fields[4]] -= n
	case "CLOSE":
		if _, ok := f.cursors[fields[1]]; !ok {
			return 0, fmt.Errorf("cursor %s does not exist", fields[1])
		}
		delete(f.cursors, fields[1])
	}
	return 0, nil
}

func (f *fakeSession) Query(_ context.Context, sql string) ([]Row, []Column, error) {
	if err := f.record(sql); err != nil {
		return nil, nil, err
	}
	fields := strings.Fields(sql)
	if fields[0] != "FETCH" {
		return f.rows, f.columns, nil
	}

	n, _ := strconv.Atoi(fields[2])
	name := fields[4]
	pos, ok := f.cursors[name]
	if !ok {
		return nil, nil, fmt.Errorf("cursor %s does not exist", name)
	}
	end := min(pos+n, len(f.rows))
	batch := append([]Row(nil), f.rows[pos:end]...)
	f.cursors[name] = end
	return batch, f.columns, nil
}

func (f *fakeSession) Prepare(_ context.Context, sql string) ([]Column, error) {
	if err := f.record(sql); err != nil {
		return nil, err
	}
	if commentSwallows(sql, ")") {
		return nil, errors.New("syntax error at end of input")
	}
	if strings.HasPrefix(strings.ToUpper(sql), "UPDATE") {
		return nil, nil
	}
	return f.columns, nil
}

func (f *fakeSession) Alive() bool {
	return f.alive
}

func (f *fakeSession) Watch(d Disconnecter) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watchers[d] = struct{}{}
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.watchers, d)
	}
}

// disconnect drops the session the way a closed connection would.
func (f *fakeSession) disconnect() {
	f.mu.Lock()
	watchers := make([]Disconnecter, 0, len(f.watchers))
	for d := range f.watchers {
		watchers = append(watchers, d)
	}
	f.mu.Unlock()

	for _, d := range watchers {
		d.MarkDisconnected()
	}
	f.alive = false
}

// commentSwallows reports whether tok sits inside a line comment on some
// line of sql, where the server would never see it.
func commentSwallows(sql, tok string) bool {
	for _, line := range strings.Split(sql, "\n") {
		i := strings.Index(line, "--")
		if i >= 0 && strings.Contains(line[i:], tok) {
			return true
		}
	}
	return false
}
