package redisstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"time"

	"github.com/MrEthical07/accountcore/account"
)

const accountRecordVersionV1 = 1

const (
	flagTwoFactorEnabled byte = 1 << iota
	flagResetTokenUsed
)

var errCorruptRecord = errors.New("corrupt account record")

func encodeAccount(acc *account.Account) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(accountRecordVersionV1)

	var flags byte
	if acc.TwoFactorEnabled {
		flags |= flagTwoFactorEnabled
	}
	if acc.ResetTokenUsed {
		flags |= flagResetTokenUsed
	}
	buf.WriteByte(flags)

	for _, s := range []string{acc.ID, acc.Email, acc.FirstName, acc.LastName, acc.PasswordHash, string(acc.Role)} {
		if err := writeString(&buf, s); err != nil {
			return nil, err
		}
	}

	if acc.FailedAttempts < 0 || acc.FailedAttempts > math.MaxUint16 {
		return nil, errors.New("failed attempts out of range")
	}
	ints := []any{
		acc.DNI,
		uint16(acc.FailedAttempts),
		int32(acc.TwoFactorCode),
		unixNano(acc.LockUntil),
		unixNano(acc.TwoFactorExpires),
		unixNano(acc.PasswordChangedAt),
		unixNano(acc.CreatedAt),
		unixNano(acc.UpdatedAt),
	}
	for _, v := range ints {
		if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func decodeAccount(data []byte) (*account.Account, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, errCorruptRecord
	}
	if version != accountRecordVersionV1 {
		return nil, errors.New("invalid account record version")
	}
	flags, err := reader.ReadByte()
	if err != nil {
		return nil, errCorruptRecord
	}

	acc := &account.Account{
		TwoFactorEnabled: flags&flagTwoFactorEnabled != 0,
		ResetTokenUsed:   flags&flagResetTokenUsed != 0,
	}

	var role string
	for _, dst := range []*string{&acc.ID, &acc.Email, &acc.FirstName, &acc.LastName, &acc.PasswordHash, &role} {
		if *dst, err = readString(reader); err != nil {
			return nil, errCorruptRecord
		}
	}
	acc.Role = account.Role(role)

	var (
		attempts uint16
		code     int32
		times    [5]int64
	)
	if err := binary.Read(reader, binary.BigEndian, &acc.DNI); err != nil {
		return nil, errCorruptRecord
	}
	if err := binary.Read(reader, binary.BigEndian, &attempts); err != nil {
		return nil, errCorruptRecord
	}
	if err := binary.Read(reader, binary.BigEndian, &code); err != nil {
		return nil, errCorruptRecord
	}
	if err := binary.Read(reader, binary.BigEndian, &times); err != nil {
		return nil, errCorruptRecord
	}
	if reader.Len() != 0 {
		return nil, errCorruptRecord
	}

	acc.FailedAttempts = int(attempts)
	acc.TwoFactorCode = int(code)
	acc.LockUntil = fromUnixNano(times[0])
	acc.TwoFactorExpires = fromUnixNano(times[1])
	acc.PasswordChangedAt = fromUnixNano(times[2])
	acc.CreatedAt = fromUnixNano(times[3])
	acc.UpdatedAt = fromUnixNano(times[4])

	return acc, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > math.MaxUint16 {
		return errors.New("account record field too long")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
