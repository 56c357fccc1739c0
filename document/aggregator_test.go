package document

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastercactapus/scanbridge/transfer"
)

type recordEncoder struct {
	failPage int
	docs     []*recordDocument
}

func (e *recordEncoder) NewDocument() (Document, error) {
	d := &recordDocument{failPage: e.failPage}
	e.docs = append(e.docs, d)
	return d, nil
}

type recordDocument struct {
	failPage int
	pages    []string
}

func (d *recordDocument) AppendPage(img []byte) error {
	if len(d.pages)+1 == d.failPage {
		return errors.New("cannot decode")
	}
	d.pages = append(d.pages, string(img))
	return nil
}

func (d *recordDocument) Finalize() ([]byte, error) {
	return []byte(strings.Join(d.pages, ",")), nil
}

func job(pages ...string) *transfer.Job {
	j := transfer.NewJob()
	for _, p := range pages {
		j.Append([]byte(p))
	}
	return j
}

func TestAggregator_Assemble(t *testing.T) {
	enc := &recordEncoder{}
	a := NewAggregator(enc, nil)

	j := job("A", "B", "C")
	data, err := a.Assemble(j)
	require.NoError(t, err)
	assert.Equal(t, "A,B,C", string(data))
	assert.Equal(t, 0, j.Len())
	require.Len(t, enc.docs, 1)
}

func TestAggregator_Empty(t *testing.T) {
	enc := &recordEncoder{}
	a := NewAggregator(enc, nil)

	data, err := a.Assemble(job())
	assert.NoError(t, err)
	assert.Nil(t, data)
	assert.Empty(t, enc.docs)
}

func TestAggregator_FailureKeepsPages(t *testing.T) {
	a := NewAggregator(&recordEncoder{failPage: 2}, nil)

	j := job("A", "B", "C")
	data, err := a.Assemble(j)
	assert.Nil(t, data)

	var encErr *EncodeError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, 2, encErr.Page)
	assert.Equal(t, [][]byte{[]byte("A"), []byte("B"), []byte("C")}, j.Pages())
}
