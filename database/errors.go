package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/lib/pq"
	"github.com/siherrmann/directory/model"
)

// PostgreSQL error codes the directory reacts to.
const (
	pqForeignKeyViolation       = "23503"
	pqNotNullViolation          = "23502"
	pqCheckViolation            = "23514"
	pqInvalidTextRepresentation = "22P02"
	pqStringDataRightTruncation = "22001"
	pqInvalidParameterValue     = "22023"
	pqCharacterNotInRepertoire  = "22021"
	pqUntranslatableCharacter   = "22P05"
	pqQueryCanceled             = "57014"
	pqConnectionFailureClass    = "08"
	fkRelationshipsSourceEntity = "fk_relationships_source_entity"
	fkRelationshipsTargetEntity = "fk_relationships_target_entity"
)

// Classify maps err into the directory error taxonomy.
// Directory errors pass through unchanged, everything unknown becomes a StorageError.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrValidation) || errors.Is(err, model.ErrStorage) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqCheckViolation, pqNotNullViolation, pqInvalidTextRepresentation, pqStringDataRightTruncation, pqInvalidParameterValue,
			pqCharacterNotInRepertoire, pqUntranslatableCharacter:
			field := pqErr.Column
			if field == "" {
				field = pqErr.Constraint
			}
			if field == "" {
				field = "input"
			}
			return model.NewValidationError(field, "rejected by storage constraint")
		case pqQueryCanceled:
			return model.NewStorageError(op, model.StorageQuery, err)
		}
		if pqErr.Code.Class() == pqConnectionFailureClass {
			return model.NewStorageError(op, model.StorageConnection, err)
		}
		return model.NewStorageError(op, model.StorageQuery, err)
	}

	if isConnectionError(err) {
		return model.NewStorageError(op, model.StorageConnection, err)
	}
	return model.NewStorageError(op, model.StorageQuery, err)
}

// foreignKeyEndpoint reports which relationship endpoint a foreign key violation refers to.
func foreignKeyEndpoint(err error) (model.Endpoint, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != pqForeignKeyViolation {
		return "", false
	}
	switch pqErr.Constraint {
	case fkRelationshipsSourceEntity:
		return model.EndpointSource, true
	case fkRelationshipsTargetEntity:
		return model.EndpointTarget, true
	}
	return "", false
}

func isConnectionError(err error) bool {
	var opErr *net.OpError
	return errors.Is(err, driver.ErrBadConn) || errors.As(err, &opErr)
}

// beginErrorKind classifies a failed BeginTx. The context only expires there
// while waiting for a free connection.
func beginErrorKind(ctx context.Context, err error) model.StorageKind {
	switch {
	case ctx.Err() != nil, errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return model.StoragePoolTimeout
	case isConnectionError(err):
		return model.StorageConnection
	}
	return model.StorageTransaction
}
