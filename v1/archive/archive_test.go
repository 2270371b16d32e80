package archive

import (
	"context"
	"testing"
	"time"

	"github.com/Aleph-Alpha/rabbit-dlq/v1/delivery"
	"github.com/Aleph-Alpha/rabbit-dlq/v1/envelope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var _ delivery.DeadLetterSink = (*Archive)(nil)

func sampleDeadLetter() delivery.DeadLetter {
	return delivery.DeadLetter{
		MessageID:  "6f1c2d4e-0000-4000-8000-000000000001",
		Queue:      "dlx",
		Origin:     envelope.Queue("example4"),
		RetryCount: 3,
		Reason:     "retries_exhausted",
		Body:       []byte(`{"order":42}`),
		Headers:    map[string]interface{}{"retries": int32(3), "tenant": "acme"},
		ReceivedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*60*60)),
	}
}

func TestNewRecord(t *testing.T) {
	rec := newRecord(sampleDeadLetter())

	assert.Equal(t, "dlx", rec.Queue)
	assert.Equal(t, "", rec.OriginExchange)
	assert.Equal(t, "example4", rec.OriginRoutingKey)
	assert.Equal(t, 3, rec.RetryCount)
	assert.Equal(t, time.UTC, rec.ReceivedAt.Location())
	assert.Equal(t, 10, rec.ReceivedAt.Hour())

	raw, err := rec.Headers.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"retries":3,"tenant":"acme"}`, string(raw))
}

func TestNewRecordDefaultsReceivedAt(t *testing.T) {
	dl := sampleDeadLetter()
	dl.ReceivedAt = time.Time{}
	dl.Headers = nil

	rec := newRecord(dl)
	assert.False(t, rec.ReceivedAt.IsZero())
	assert.Nil(t, rec.Headers)

	value, err := rec.Headers.Value()
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestRecordHeadersColumn(t *testing.T) {
	rec := newRecord(sampleDeadLetter())

	value, err := rec.Headers.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"retries":3,"tenant":"acme"}`, value.(string))

	var scanned datatypes.JSONMap
	require.NoError(t, scanned.Scan([]byte(`{"retries":3,"tenant":"acme"}`)))
	assert.Equal(t, "acme", scanned["tenant"])
	assert.Equal(t, float64(3), scanned["retries"])

	var broken datatypes.JSONMap
	assert.Error(t, broken.Scan([]byte(`{not json`)))
}

func TestUnencodableHeadersFailValue(t *testing.T) {
	dl := sampleDeadLetter()
	dl.Headers = map[string]interface{}{"bad": make(chan int)}

	_, err := newRecord(dl).Headers.Value()
	assert.Error(t, err)
}

func TestRecordDeadLetterRoundTrip(t *testing.T) {
	rec := newRecord(sampleDeadLetter())

	dl := rec.DeadLetter()
	assert.Equal(t, envelope.Queue("example4"), dl.Origin)
	assert.Equal(t, "retries_exhausted", dl.Reason)
	assert.Equal(t, "acme", dl.Headers["tenant"])
	assert.Equal(t, "dead_letters", Record{}.TableName())
}

func TestConfigDSN(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr error
	}{
		{
			name: "explicit dsn wins",
			cfg:  Config{DSN: "postgres://u:p@db/app", Connection: Connection{Host: "ignored"}},
			want: "postgres://u:p@db/app",
		},
		{
			name: "postgres from connection",
			cfg:  Config{Connection: Connection{Host: "db", Port: "5432", User: "app", Password: "pw", DbName: "dlq"}},
			want: "host=db port=5432 user=app password=pw dbname=dlq sslmode=disable",
		},
		{
			name: "mysql from connection",
			cfg:  Config{Driver: DriverMySQL, Connection: Connection{Host: "db", Port: "3306", User: "app", Password: "p@ss", DbName: "dlq"}},
			want: "app:p%40ss@tcp(db:3306)/dlq?charset=utf8mb4&parseTime=True&loc=UTC",
		},
		{
			name:    "unknown driver",
			cfg:     Config{Driver: "oracle"},
			wantErr: ErrUnsupportedDriver,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.dsn()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewArchiveUnsupportedDriver(t *testing.T) {
	_, err := NewArchive(Config{Driver: "oracle", DSN: "x"})
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}

// dryRunArchive builds an Archive whose statements are rendered but never sent.
func dryRunArchive(t *testing.T) *Archive {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=127.0.0.1 port=1 user=x dbname=x sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)
	return newWithDB(Config{}, db)
}

func TestStoreRendersInsert(t *testing.T) {
	a := dryRunArchive(t)

	var sql string
	require.NoError(t, a.DB().Callback().Create().After("gorm:create").Register("test:capture", func(db *gorm.DB) {
		sql = db.Statement.SQL.String()
	}))

	require.NoError(t, a.Store(context.Background(), sampleDeadLetter()))
	assert.Contains(t, sql, `INSERT INTO "dead_letters"`)
	assert.Contains(t, sql, `"message_id"`)
	assert.Contains(t, sql, `"origin_routing_key"`)
}

func TestStoreObservesOperation(t *testing.T) {
	obs := &recordingObserver{}
	a := dryRunArchive(t).WithObserver(obs)

	require.NoError(t, a.Store(context.Background(), sampleDeadLetter()))

	require.Len(t, obs.ops, 1)
	assert.Equal(t, "archive", obs.ops[0].Component)
	assert.Equal(t, "store", obs.ops[0].Operation)
	assert.Equal(t, "dlx", obs.ops[0].Resource)
	assert.Equal(t, int64(len(`{"order":42}`)), obs.ops[0].Size)
	assert.Equal(t, "postgres", obs.ops[0].Metadata["driver"])
}

func TestClosedArchive(t *testing.T) {
	a := dryRunArchive(t)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	assert.ErrorIs(t, a.Store(context.Background(), sampleDeadLetter()), ErrNotConnected)

	_, err := a.Recent(context.Background(), "", 10)
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = a.Count(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotConnected)
}
