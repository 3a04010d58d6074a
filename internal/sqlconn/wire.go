package sqlconn

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// AttrAccessToken is the pre-connect attribute id (SQL_COPT_SS_ACCESS_TOKEN)
// that carries the framed access token.
const AttrAccessToken = 1256

// EncodeAccessToken frames token for AttrAccessToken: every UTF-8 byte is
// followed by 0x00, and the result is prefixed by its byte length as a
// little-endian uint32. "AB" encodes to 04 00 00 00 41 00 42 00.
func EncodeAccessToken(token string) []byte {
	raw := []byte(token)
	out := make([]byte, 4, 4+2*len(raw))
	binary.LittleEndian.PutUint32(out, uint32(2*len(raw)))

	for _, b := range raw {
		out = append(out, b, 0x00)
	}

	return out
}

var errBadTokenFrame = errors.New("sqlconn: malformed access token frame")

// DecodeAccessToken reverses EncodeAccessToken.
func DecodeAccessToken(frame []byte) (string, error) {
	if len(frame) < 4 {
		return "", fmt.Errorf("%w: %d bytes", errBadTokenFrame, len(frame))
	}

	n := binary.LittleEndian.Uint32(frame)
	body := frame[4:]

	if uint64(n) != uint64(len(body)) || n%2 != 0 {
		return "", fmt.Errorf("%w: length prefix %d, body %d bytes", errBadTokenFrame, n, len(body))
	}

	out := make([]byte, 0, n/2)
	for i := 0; i < len(body); i += 2 {
		if body[i+1] != 0x00 {
			return "", fmt.Errorf("%w: nonzero pad at offset %d", errBadTokenFrame, i+1)
		}

		out = append(out, body[i])
	}

	return string(out), nil
}
