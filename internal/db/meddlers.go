package db

import (
	"database/sql"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/russross/meddler"
)

func init() {
	meddler.Register("hash", hexMeddler[common.Hash]{fromHex: common.HexToHash})
	meddler.Register("address", hexMeddler[common.Address]{fromHex: common.HexToAddress})
}

// hexMeddler maps go-ethereum hash and address fields to their checksummed
// hex string in the database, so rows stay readable in sqlite tooling and
// NULL columns round-trip as zero values (or nil for pointer fields).
type hexMeddler[T interface{ Hex() string }] struct {
	fromHex func(string) T
}

func (m hexMeddler[T]) PreRead(fieldAddr any) (scanTarget any, err error) {
	return new(sql.NullString), nil
}

func (m hexMeddler[T]) PostRead(fieldAddr, scanTarget any) error {
	ns, ok := scanTarget.(*sql.NullString)
	if !ok {
		return fmt.Errorf("expected *sql.NullString, got %T", scanTarget)
	}

	if ptr, ok := fieldAddr.(*T); ok {
		if !ns.Valid {
			var zero T
			*ptr = zero
			return nil
		}
		*ptr = m.fromHex(ns.String)
		return nil
	}

	if ptr, ok := fieldAddr.(**T); ok {
		if !ns.Valid {
			*ptr = nil
			return nil
		}
		v := m.fromHex(ns.String)
		*ptr = &v
		return nil
	}

	return fmt.Errorf("unsupported field type %T", fieldAddr)
}

func (m hexMeddler[T]) PreWrite(field any) (saveValue any, err error) {
	if v, ok := field.(T); ok {
		return v.Hex(), nil
	}

	if v, ok := field.(*T); ok {
		if v == nil {
			return nil, nil
		}
		return (*v).Hex(), nil
	}

	return nil, fmt.Errorf("unsupported field type %T", field)
}
