package importer

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// rollback is the compensating action for post-commit invalidity. It restores
// the record from the last successful import snapshot, or hides the record
// when no such snapshot exists. This is best effort, not a transactional
// undo; partial failures are logged and the better of the two outcomes is
// still pursued.
func (im *Importer) rollback(ctx context.Context, rec *Record) RollbackOutcome {
	entry, err := im.log.LastSuccessful(ctx, rec.internalID)
	if err != nil {
		im.logger.Error("look up last successful import",
			zap.String("external_id", rec.externalID),
			zap.Int64("internal_id", rec.internalID),
			zap.Error(err),
		)
		entry = nil
	}

	if entry == nil {
		if err := im.content.SetStatus(ctx, rec.internalID, im.opts.HiddenStatus); err != nil {
			im.logger.Error("hide record after failed import",
				zap.Int64("internal_id", rec.internalID),
				zap.Error(err),
			)
		}
		return RollbackHidden
	}

	if err := im.replay(ctx, rec, entry); err != nil {
		im.logger.Error("restore record from last successful import",
			zap.String("external_id", rec.externalID),
			zap.Int64("internal_id", rec.internalID),
			zap.Error(err),
		)
	}
	return RollbackRestored
}

// replay re-runs the full pipeline with the snapshot as input, in a mode that
// suppresses validation, logging, and further rollback so a bad snapshot can
// never recurse. Managed data is wiped first, which makes the re-save
// idempotent regardless of what the failed attempt already wrote.
func (im *Importer) replay(ctx context.Context, rec *Record, entry *LogEntry) error {
	var snap snapshot
	if err := json.Unmarshal([]byte(entry.Data), &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	if err := im.DeleteAllManagedData(ctx, rec.internalID); err != nil {
		return fmt.Errorf("clear managed data: %w", err)
	}

	replayRec := &Record{
		externalID:    snap.ExternalID,
		internalID:    rec.internalID,
		existed:       true,
		payload:       snap.Payload,
		attachmentIDs: make(map[string]int64),
		saved:         make(map[Stage]struct{}),
		errors:        NewBag(im.resolver.Ref(snap.ExternalID), nil),
	}

	// Validation is suppressed on replay, but the snapshot's date, parent
	// and order fields still need parsing or saveBase would keep the failed
	// attempt's column values.
	im.parseBase(ctx, replayRec)

	// The wipe removed the identity index entries; restore the mapping
	// before anything resolves through it again.
	im.identify(ctx, replayRec, im.resolver, ScopePost, rec.internalID, snap.ExternalID)

	im.runStages(ctx, replayRec)

	if !replayRec.errors.IsEmpty() {
		im.logger.Warn("errors during rollback replay",
			zap.String("external_id", snap.ExternalID),
			zap.Int64("internal_id", rec.internalID),
			zap.Any("errors", replayRec.errors.All()),
		)
	}
	return nil
}

// DeleteAllManagedData erases all import-managed metadata and term
// relationships for a record. The base record itself is kept to avoid
// orphaning unrelated data.
func (im *Importer) DeleteAllManagedData(ctx context.Context, internalID int64) error {
	if err := im.meta.DeleteAll(ctx, internalID); err != nil {
		return fmt.Errorf("delete metadata of %d: %w", internalID, err)
	}
	if err := im.terms.RemoveAll(ctx, internalID); err != nil {
		return fmt.Errorf("delete term relationships of %d: %w", internalID, err)
	}
	return nil
}

// DeleteByExternalID removes the record mapped to externalID. With force the
// record is deleted outright; otherwise it is moved to the trash status. The
// boolean reports whether a mapping existed.
func (im *Importer) DeleteByExternalID(ctx context.Context, externalID string, force bool) (bool, error) {
	id, found, err := im.resolver.Resolve(ctx, externalID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	if !force {
		if err := im.content.SetStatus(ctx, id, im.opts.TrashStatus); err != nil {
			return true, fmt.Errorf("trash record %d: %w", id, err)
		}
		return true, nil
	}

	if err := im.DeleteAllManagedData(ctx, id); err != nil {
		return true, err
	}
	if err := im.content.Delete(ctx, id, true); err != nil {
		return true, fmt.Errorf("delete record %d: %w", id, err)
	}
	im.resolver.Invalidate(ctx, externalID)
	return true, nil
}
