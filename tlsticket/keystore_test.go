package tlsticket

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	sdks3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory ObjectStore for exercising Keystore without
// a live S3 endpoint.
type fakeStore struct {
	objects map[string][]byte
}

func newFakeStore() *fakeStore { return &fakeStore{objects: map[string][]byte{}} }

func (f *fakeStore) GetObject(_ context.Context, in *sdks3.GetObjectInput, _ ...func(*sdks3.Options)) (*sdks3.GetObjectOutput, error) {
	raw, ok := f.objects[*in.Key]
	if !ok {
		return nil, errNotFound{}
	}
	return &sdks3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(raw))}, nil
}

func (f *fakeStore) PutObject(_ context.Context, in *sdks3.PutObjectInput, _ ...func(*sdks3.Options)) (*sdks3.PutObjectOutput, error) {
	raw, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = raw
	return &sdks3.PutObjectOutput{}, nil
}

// errNotFound stands in for the SDK's smithy.APIError-satisfying
// *types.NoSuchKey, since NewFromConfig isn't exercised by these tests.
type errNotFound struct{}

func (errNotFound) Error() string        { return "not found" }
func (errNotFound) ErrorCode() string    { return "NoSuchKey" }
func (errNotFound) ErrorMessage() string { return "not found" }
func (errNotFound) ErrorFault() smithy.ErrorFault {
	return smithy.FaultClient
}

func TestKeystoreRoundTrip(t *testing.T) {
	store := newFakeStore()
	ks := &Keystore{Store: store, Bucket: "b", Key: "ticket-keys"}

	ring, err := NewRing(4, time.Now())
	require.NoError(t, err)
	require.NoError(t, ring.Rotate(time.Now().Add(time.Minute)))
	require.NoError(t, ring.Rotate(time.Now().Add(2*time.Minute)))

	require.NoError(t, ks.SaveKeystore(context.Background(), ring))

	loaded, err := NewRing(4, time.Now())
	require.NoError(t, err)
	require.NoError(t, ks.LoadKeystore(context.Background(), loaded))

	require.Equal(t, ring.EncryptInit().Name, loaded.EncryptInit().Name)
	require.Len(t, loaded.Snapshot(), len(ring.Snapshot()))
}

func TestKeystoreLoadMissingObjectIsNotError(t *testing.T) {
	store := newFakeStore()
	ks := &Keystore{Store: store, Bucket: "b", Key: "absent"}

	ring, err := NewRing(4, time.Now())
	require.NoError(t, err)
	before := ring.EncryptInit()

	require.NoError(t, ks.LoadKeystore(context.Background(), ring))
	require.Equal(t, before.Name, ring.EncryptInit().Name)
}

func TestPersistedKeyCborRoundTrip(t *testing.T) {
	k := persistedKey{CreatedAt: time.Now().UTC().Truncate(time.Second)}
	k.Name[0] = 0xAB

	raw, err := cbor.Marshal(k)
	require.NoError(t, err)

	var out persistedKey
	require.NoError(t, cbor.Unmarshal(raw, &out))
	require.Equal(t, k.Name, out.Name)
	require.True(t, k.CreatedAt.Equal(out.CreatedAt))
}
