package xmlutil

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `<?xml version="1.0"?>
<Document xmlns="urn:iso:std:iso:20022:tech:xsd:camt.054.001.04">
  <BkToCstmrDbtCdtNtfctn>
    <Ntfctn>
      <Id>MSG1</Id>
      <Ntry><Amt Ccy="CHF">10.00</Amt></Ntry>
      <Ntry><Amt Ccy="CHF">2.53</Amt></Ntry>
    </Ntfctn>
  </BkToCstmrDbtCdtNtfctn>
</Document>`

func TestWalker_RequireFindsUniqueChild(t *testing.T) {
	root, err := Parse(bytes.NewReader([]byte(sampleDoc)))
	require.NoError(t, err)

	w := NewWalker(root)
	notif, err := w.Require("BkToCstmrDbtCdtNtfctn")
	require.NoError(t, err)

	inner, err := notif.Require("Ntfctn")
	require.NoError(t, err)

	id, err := inner.Require("Id")
	require.NoError(t, err)
	text, err := id.RequireText()
	require.NoError(t, err)
	assert.Equal(t, "MSG1", text)

	entries := inner.All("Ntry")
	assert.Len(t, entries, 2)
}

func TestWalker_RequireErrorsOnMissing(t *testing.T) {
	root, err := Parse(bytes.NewReader([]byte(sampleDoc)))
	require.NoError(t, err)

	w := NewWalker(root)
	_, err = w.Require("NoSuchElement")
	require.Error(t, err)
	var shapeErr *ShapeError
	assert.ErrorAs(t, err, &shapeErr)
}

func TestWalker_ExtraChildrenIgnored(t *testing.T) {
	doc := `<Root><Known>x</Known><Unknown>ignored</Unknown></Root>`
	root, err := Parse(bytes.NewReader([]byte(doc)))
	require.NoError(t, err)

	w := NewWalker(root)
	known, err := w.Require("Known")
	require.NoError(t, err)
	text, err := known.RequireText()
	require.NoError(t, err)
	assert.Equal(t, "x", text)
}

func TestSchema_ValidateRejectsWrongRoot(t *testing.T) {
	root, err := Parse(bytes.NewReader([]byte(sampleDoc)))
	require.NoError(t, err)

	s := Schema{RootLocal: "WrongRoot"}
	err = s.Validate(root)
	require.Error(t, err)
}

func TestSchema_ValidateAcceptsMatchingShape(t *testing.T) {
	root, err := Parse(bytes.NewReader([]byte(sampleDoc)))
	require.NoError(t, err)

	s := Schema{RootLocal: "Document", RequiredChildren: []string{"BkToCstmrDbtCdtNtfctn"}}
	assert.NoError(t, s.Validate(root))
}
