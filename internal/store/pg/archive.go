package pg

import (
	"context"

	"bankmesh.org/internal/ledger"
	"bankmesh.org/internal/obs"
	"bankmesh.org/internal/stream"
)

// Archive records ev. Replays of an already archived entry are ignored.
func (s *Store) Archive(ctx context.Context, ev stream.TransferEvent) error {
	_, err := s.db.ExecContext(ctx, `
		insert into transfer_archive(id, sequence, kind, src_bank, src_account, dst_bank, dst_account, amount, posted_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		on conflict (id) do nothing
	`, ev.ID, int64(ev.Sequence), string(ev.Kind),
		int64(ev.From.BankID), int64(ev.From.AccountID),
		int64(ev.To.BankID), int64(ev.To.AccountID),
		int64(ev.Amount), ev.Timestamp.UTC())
	return err
}

// RunArchiver drains events into the archive until the channel closes.
func (s *Store) RunArchiver(ctx context.Context, events <-chan stream.TransferEvent) {
	log := obs.Component("archive")
	for ev := range events {
		if err := s.Archive(ctx, ev); err != nil {
			log.WithError(err).WithField("sequence", ev.Sequence).Error("archive transfer failed")
		}
	}
}

// ListArchived pages through archived transfers by sequence.
func (s *Store) ListArchived(ctx context.Context, limit int, afterSeq uint64) ([]stream.TransferEvent, uint64, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, sequence, kind, src_bank, src_account, dst_bank, dst_account, amount, posted_at
		from transfer_archive
		where sequence > $1
		order by sequence asc
		limit $2
	`, int64(afterSeq), limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		res  []stream.TransferEvent
		last uint64
	)
	for rows.Next() {
		var ev stream.TransferEvent
		var seq, srcBank, srcAcc, dstBank, dstAcc, amount int64
		var kind string
		if err := rows.Scan(&ev.ID, &seq, &kind, &srcBank, &srcAcc, &dstBank, &dstAcc, &amount, &ev.Timestamp); err != nil {
			return nil, 0, err
		}
		ev.Sequence = uint64(seq)
		ev.Kind = ledger.Kind(kind)
		ev.From = ledger.Endpoint{BankID: ledger.BankID(srcBank), AccountID: ledger.AccountID(srcAcc)}
		ev.To = ledger.Endpoint{BankID: ledger.BankID(dstBank), AccountID: ledger.AccountID(dstAcc)}
		ev.Amount = ledger.Money(amount)
		ev.Display = ev.Amount.String()
		res = append(res, ev)
		last = ev.Sequence
	}
	return res, last, rows.Err()
}
