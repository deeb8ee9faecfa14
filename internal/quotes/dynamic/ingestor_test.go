package dynamic

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"quantfeed.com/pkg/xerr"
)

const ohlcvHeader = "Date,Open,High,Low,Close,Volume"

func newOHLCV(t *testing.T, opts ...Option) *Ingestor {
	t.Helper()
	in, err := NewIngestor(opts...)
	require.NoError(t, err)
	rec, err := in.Ingest(ohlcvHeader)
	require.NoError(t, err)
	require.Nil(t, rec, "header must not produce a record")
	return in
}

func TestIngestor_Header(t *testing.T) {
	in, err := NewIngestor()
	require.NoError(t, err)
	assert.False(t, in.Initialized())
	assert.Nil(t, in.Schema())

	rec, err := in.Ingest(ohlcvHeader)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.True(t, in.Initialized())
	assert.Equal(t, []string{"Date", "Open", "High", "Low", "Close", "Volume"}, in.Schema().Names())
}

func TestIngestor_DataLine(t *testing.T) {
	in := newOHLCV(t, WithPrimaryField("Close"), WithSymbol("AAPL"))

	rec, err := in.Ingest("2015-01-02,100.0,101.5,99.0,100.8,12000")
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.True(t, time.Date(2015, 1, 2, 0, 0, 0, 0, time.UTC).Equal(rec.Timestamp()))
	assert.Equal(t, "AAPL", rec.Symbol())

	closing, ok := rec.Field("Close")
	require.True(t, ok)
	assert.True(t, closing.Equal(Number(100.8)))

	assert.True(t, rec.PrimaryValue().Equal(Number(100.8)))
	assert.Equal(t, "Close", rec.PrimaryField())

	date, ok := rec.Field("Date")
	require.True(t, ok)
	assert.Equal(t, KindTimestamp, date.Kind())

	_, ok = rec.Field("AdjClose")
	assert.False(t, ok)
}

func TestIngestor_FieldMatchesEveryColumn(t *testing.T) {
	in := newOHLCV(t)
	tokens := []string{"2015-01-02", "100.0", "101.5", "99.0", "100.8", "12000"}
	rec, err := in.Ingest("2015-01-02,100.0,101.5,99.0,100.8,12000")
	require.NoError(t, err)
	require.Equal(t, in.Schema().Len(), rec.Len())

	for i, name := range in.Schema().Names()[1:] {
		got, ok := rec.Field(name)
		require.True(t, ok, name)
		assert.True(t, got.Equal(Coerce(tokens[i+1])), name)
	}
}

func TestIngestor_DefaultPrimaryIsLastNumeric(t *testing.T) {
	in, err := NewIngestor()
	require.NoError(t, err)
	_, err = in.Ingest("Date,Value,Note")
	require.NoError(t, err)

	rec, err := in.Ingest("2015-01-02,42.5,revised")
	require.NoError(t, err)
	assert.Equal(t, "Value", rec.PrimaryField())

	// fixed after the first data row even if the column later holds text
	rec, err = in.Ingest("2015-01-05,n/a,revised")
	require.NoError(t, err)
	assert.Equal(t, "Value", rec.PrimaryField())
	txt, ok := rec.PrimaryValue().Text()
	require.True(t, ok)
	assert.Equal(t, "n/a", txt)
}

func TestIngestor_UnknownPrimaryFallsBack(t *testing.T) {
	in := newOHLCV(t, WithPrimaryField("Settle"))
	rec, err := in.Ingest("2015-01-02,100.0,101.5,99.0,100.8,12000")
	require.NoError(t, err)
	assert.Equal(t, "Volume", rec.PrimaryField())
}

func TestIngestor_RowShape(t *testing.T) {
	in := newOHLCV(t)

	rec, err := in.Ingest("2015-01-02,100.0")
	assert.Nil(t, rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRowShape))
	assert.Equal(t, xerr.RowShape, xerr.CodeOf(err))

	var shape *RowShapeError
	require.True(t, errors.As(err, &shape))
	assert.Equal(t, 6, shape.Want)
	assert.Equal(t, 2, shape.Got)

	// schema unchanged and the next good line still parses
	assert.Equal(t, 6, in.Schema().Len())
	rec, err = in.Ingest("2015-01-05,1,2,3,4,5")
	require.NoError(t, err)
	require.NotNil(t, rec)
}

func TestIngestor_BlankDataLineIsRowShape(t *testing.T) {
	in := newOHLCV(t)
	_, err := in.Ingest("")
	assert.ErrorIs(t, err, ErrRowShape)
}

func TestIngestor_Timestamp(t *testing.T) {
	in := newOHLCV(t)

	rec, err := in.Ingest("yesterday,1,2,3,4,5")
	assert.Nil(t, rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimestamp))
	assert.Equal(t, xerr.Timestamp, xerr.CodeOf(err))

	var tsErr *TimestampError
	require.True(t, errors.As(err, &tsErr))
	assert.Equal(t, "yesterday", tsErr.Token)

	rec, err = in.Ingest("2015-01-05,1,2,3,4,5")
	require.NoError(t, err)
	require.NotNil(t, rec)
}

func TestIngestor_SecondHeaderIsData(t *testing.T) {
	in := newOHLCV(t)
	before := in.Schema()

	rec, err := in.Ingest(ohlcvHeader)
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, ErrTimestamp)
	assert.Same(t, before, in.Schema())

	rec, err = in.Ingest("Date,Open")
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, ErrRowShape)
	assert.Equal(t, []string{"Date", "Open", "High", "Low", "Close", "Volume"}, in.Schema().Names())
}

func TestIngestor_TextDegrades(t *testing.T) {
	in := newOHLCV(t)
	rec, err := in.Ingest("2015-01-02,100.0,,NaN,100.8,1.2M")
	require.NoError(t, err)

	high, _ := rec.Field("High")
	assert.Equal(t, KindText, high.Kind())
	low, _ := rec.Field("Low")
	assert.Equal(t, KindText, low.Kind())
	vol, _ := rec.Field("Volume")
	s, ok := vol.Text()
	require.True(t, ok)
	assert.Equal(t, "1.2M", s)
}

func TestIngestor_EmptyHeader(t *testing.T) {
	in, err := NewIngestor()
	require.NoError(t, err)

	_, err = in.Ingest("   \r\n")
	assert.ErrorIs(t, err, ErrEmptyHeader)
	assert.False(t, in.Initialized())

	_, err = in.Ingest("Date,Value")
	require.NoError(t, err)
	assert.True(t, in.Initialized())
}

func TestIngestor_CRLFAndQuotes(t *testing.T) {
	in, err := NewIngestor()
	require.NoError(t, err)
	_, err = in.Ingest("Date,Name,Value\r\n")
	require.NoError(t, err)

	rec, err := in.Ingest("2015-01-02,\"Smith, J\",3.5\r\n")
	require.NoError(t, err)
	name, _ := rec.Field("Name")
	s, _ := name.Text()
	assert.Equal(t, "Smith, J", s)
	v, _ := rec.Field("Value")
	f, _ := v.Float()
	assert.Equal(t, 3.5, f)
}

func TestIngestor_Options(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	in, err := NewIngestor(WithDelimiter('\t'), WithLocation(ny), WithTimeLayouts("02.01.2006"))
	require.NoError(t, err)

	_, err = in.Ingest("Day\tPrice")
	require.NoError(t, err)
	rec, err := in.Ingest("02.01.2015\t7")
	require.NoError(t, err)
	assert.True(t, time.Date(2015, 1, 2, 0, 0, 0, 0, ny).Equal(rec.Timestamp()))

	_, err = NewIngestor(WithDelimiter('"'))
	assert.Error(t, err)
	_, err = NewIngestor(WithTimeLayouts())
	assert.Error(t, err)
	_, err = NewIngestor(WithLocation(nil))
	assert.Error(t, err)
}

func TestIngestor_TimeLayouts(t *testing.T) {
	cases := map[string]time.Time{
		"2015-01-02":           time.Date(2015, 1, 2, 0, 0, 0, 0, time.UTC),
		"2015-01-02T15:04:05Z": time.Date(2015, 1, 2, 15, 4, 5, 0, time.UTC),
		"2015-01-02 15:04:05":  time.Date(2015, 1, 2, 15, 4, 5, 0, time.UTC),
		"2015/01/02":           time.Date(2015, 1, 2, 0, 0, 0, 0, time.UTC),
		"01/02/2015":           time.Date(2015, 1, 2, 0, 0, 0, 0, time.UTC),
		"20150102":             time.Date(2015, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	for token, want := range cases {
		got, err := parseTime(token, DefaultTimeLayouts, time.UTC)
		require.NoError(t, err, token)
		assert.True(t, want.Equal(got), token)
	}
}

func TestIngestor_HeaderBOM(t *testing.T) {
	in, err := NewIngestor()
	require.NoError(t, err)

	_, err = in.Ingest("\ufeff" + ohlcvHeader)
	require.NoError(t, err)
	assert.Equal(t, []string{"Date", "Open", "High", "Low", "Close", "Volume"}, in.Schema().Names())
}

func TestIngestor_MatchesHeader(t *testing.T) {
	in, err := NewIngestor()
	require.NoError(t, err)
	assert.False(t, in.MatchesHeader(ohlcvHeader))

	_, err = in.Ingest(ohlcvHeader)
	require.NoError(t, err)

	assert.True(t, in.MatchesHeader(ohlcvHeader))
	assert.True(t, in.MatchesHeader("\ufeff"+ohlcvHeader+"\r\n"))
	assert.False(t, in.MatchesHeader("Date,Open,High"))
	assert.False(t, in.MatchesHeader("2015-01-02,1,2,3,4,5"))
	assert.False(t, in.MatchesHeader("Date,Open,High,Low,Close,Volume2"))
}
