package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeDecodeData(t *testing.T) {
	env := &Envelope{Success: true, Status: 200, Data: json.RawMessage(`{"id":7}`)}
	var got struct{ ID int }
	require.NoError(t, env.DecodeData(&got))
	assert.Equal(t, 7, got.ID)

	whole := &Envelope{Success: true, Status: 200, Raw: json.RawMessage(`[1,2]`)}
	var list []int
	require.NoError(t, whole.DecodeData(&list))
	assert.Equal(t, []int{1, 2}, list)

	assert.Error(t, (&Envelope{Success: true, Status: 204}).DecodeData(&list))
}

func TestEnvelopeMessage(t *testing.T) {
	top := &Envelope{Raw: json.RawMessage(`{"mensagem":"3 importados"}`)}
	assert.Equal(t, "3 importados", top.Message("padrão"))

	nested := &Envelope{Data: json.RawMessage(`{"mensagem":"ok"}`)}
	assert.Equal(t, "ok", nested.Message("padrão"))

	assert.Equal(t, "padrão", (&Envelope{Raw: json.RawMessage(`"texto"`)}).Message("padrão"))
}

func TestEnvelopeField(t *testing.T) {
	env := &Envelope{Raw: json.RawMessage(`{"anos":[2024,2023],"vazio":null}`)}
	var years []int
	ok, err := env.Field("anos", &years)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []int{2024, 2023}, years)

	ok, _ = env.Field("vazio", &years)
	assert.False(t, ok)
	ok, _ = env.Field("ausente", &years)
	assert.False(t, ok)
}

func TestEnvelopeErr(t *testing.T) {
	assert.NoError(t, (&Envelope{Success: true, Status: 200}).Err("imoveis"))

	var unauthorized *ErrUnauthorized
	assert.True(t, errors.As((&Envelope{Status: 401, Error: "expirado"}).Err("imoveis"), &unauthorized))

	var forbidden *ErrForbidden
	assert.True(t, errors.As((&Envelope{Status: 403}).Err("imoveis"), &forbidden))

	var notFound *ErrNotFound
	assert.True(t, errors.As((&Envelope{Status: 404}).Err("imoveis"), &notFound))

	network := &Envelope{Status: 0, Error: "connection refused"}
	assert.True(t, network.Network())
	var netErr *ErrNetwork
	assert.True(t, errors.As(network.Err("imoveis"), &netErr))

	var ext *ErrExternalService
	require.True(t, errors.As((&Envelope{Status: 500, Error: "boom"}).Err("imoveis"), &ext))
	assert.Equal(t, 500, ext.Status)
}

func TestParseEntityKind(t *testing.T) {
	k, err := ParseEntityKind("alugueis")
	require.NoError(t, err)
	assert.Equal(t, KindRentals, k)
	assert.Equal(t, "Erro ao importar aluguéis", k.ImportErrorPrefix())

	_, err = ParseEntityKind("contas")
	var ve *ErrValidation
	assert.True(t, errors.As(err, &ve))
}
