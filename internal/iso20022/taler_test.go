package iso20022

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleReservePub = "G1XTY6HGWGMVRM7E6XQ4JHJK561ETFDFTJZ7JVGV543XZCB27YBG"

func TestIsReservePub(t *testing.T) {
	assert.True(t, IsReservePub(sampleReservePub))
	assert.True(t, IsReservePub(" "+sampleReservePub+" "))
	assert.False(t, IsReservePub("not a reserve pubkey"))
	assert.False(t, IsReservePub(""))
}

func TestParseTalerableOutgoingSubject(t *testing.T) {
	wtid, url, ok := ParseTalerableOutgoingSubject(sampleReservePub + " https://exchange.example.com/")
	assert.True(t, ok)
	assert.Equal(t, sampleReservePub, wtid)
	assert.Equal(t, "https://exchange.example.com/", url)
}

func TestParseTalerableOutgoingSubject_RejectsWrongShape(t *testing.T) {
	_, _, ok := ParseTalerableOutgoingSubject("just one token")
	assert.False(t, ok)

	_, _, ok = ParseTalerableOutgoingSubject("too many tokens here indeed")
	assert.False(t, ok)

	_, _, ok = ParseTalerableOutgoingSubject("not-a-wtid https://exchange.example.com/")
	assert.False(t, ok)
}
