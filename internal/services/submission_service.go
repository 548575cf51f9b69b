// Package services – SubmissionService
//
// This file implements the submission coordinator: the pipeline that turns
// buffered chat fragments into committed payment rows. One flush cycle walks
// Flushing → Extracting → Validating → Committing (or Rejected) and returns
// to idle; cycles for the same (chat, user) key never overlap, and a cycle
// whose triggering messages were deleted during the buffering window is
// aborted before extraction. There is no automatic retry: a rejected
// submission requires the member to send a corrected receipt.
package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/sphinxlike/go-receipts-backend/internal/buffer"
	"github.com/sphinxlike/go-receipts-backend/internal/config"
	"github.com/sphinxlike/go-receipts-backend/internal/domain"
	"github.com/sphinxlike/go-receipts-backend/internal/extract"
	"github.com/sphinxlike/go-receipts-backend/internal/validate"
)

// submissionOutcomes counts flush cycles by terminal outcome.
var submissionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "receipts",
	Subsystem: "pipeline",
	Name:      "submissions_total",
	Help:      "Flush cycles by terminal outcome (committed, edited, rejected, aborted, empty, error).",
}, []string{"outcome"})

// Inbound is one fragment event from the chat transport: a typed message, a
// photo with optional caption, or both.
type Inbound struct {
	ChatID    int64  `json:"chat_id"`
	TopicID   int64  `json:"topic_id"`
	UserID    int64  `json:"user_id"`
	MessageID int64  `json:"message_id"`
	UserName  string `json:"user_name"`
	Text      string `json:"text"`
	Caption   string `json:"caption"`
	PhotoRef  string `json:"photo_ref"` // platform file id of the receipt image
}

// SubmissionService coordinates the receipt pipeline end to end: buffering,
// OCR, extraction, validation, commit, and chat notifications.
type SubmissionService struct {
	Groups     *config.Registry
	Store      PaymentStore
	Houses     HouseDirectory
	Recognizer Recognizer
	Files      FileFetcher
	Notifier   Notifier

	BufferWindow   time.Duration
	EditWindow     time.Duration
	EditSessionTTL time.Duration
	SuccessTTL     time.Duration
	RejectTTL      time.Duration
	AmountOptional bool

	buf      *buffer.Buffer
	edits    *editSessions
	lastSubs *lastSubmissions
	log      zerolog.Logger

	// flushMu serializes flush cycles per key so an edit arriving while a
	// commit is in flight observes the committed row.
	mu      sync.Mutex
	flushMu map[buffer.Key]*sync.Mutex

	// messageIDs remembers which chat messages fed each pending cycle, for
	// the deleted-message probe and the outcome reaction.
	msgMu      sync.Mutex
	messageIDs map[buffer.Key][]int64
}

// NewSubmissionService wires the coordinator and its internal buffer.
func NewSubmissionService(
	groups *config.Registry,
	store PaymentStore,
	houses HouseDirectory,
	recognizer Recognizer,
	files FileFetcher,
	notifier Notifier,
	cfg config.Config,
	log zerolog.Logger,
) *SubmissionService {
	s := &SubmissionService{
		Groups:         groups,
		Store:          store,
		Houses:         houses,
		Recognizer:     recognizer,
		Files:          files,
		Notifier:       notifier,
		BufferWindow:   cfg.BufferWindow,
		EditWindow:     cfg.EditWindow,
		EditSessionTTL: cfg.EditSessionTTL,
		SuccessTTL:     cfg.SuccessTTL,
		RejectTTL:      cfg.RejectTTL,
		AmountOptional: cfg.AmountOptIn,
		edits:          newEditSessions(),
		lastSubs:       newLastSubmissions(),
		log:            log,
		flushMu:        make(map[buffer.Key]*sync.Mutex),
		messageIDs:     make(map[buffer.Key][]int64),
	}
	s.buf = buffer.New(s.flush, log)
	return s
}

// photoBudget bounds one detached download-plus-OCR run. It must outlast the
// OCR client's full retry schedule.
const photoBudget = 3 * time.Minute

// HandleInbound accepts one fragment event. Messages from unregistered chats
// return ErrGroupNotRegistered; messages outside the watched topic are
// silently ignored; /edit opens the correction window for the member's last
// committed row. Photo download and OCR run on a detached context off the
// request goroutine; the fragment joins the buffer once its transcript is
// ready, so the caller gets its reply without waiting on OCR and the
// debounce window still measures user silence rather than OCR latency.
func (s *SubmissionService) HandleInbound(ctx context.Context, in Inbound) error {
	group, ok := s.Groups.ByChat(in.ChatID)
	if !ok {
		return ErrGroupNotRegistered
	}
	if !group.WatchesTopic(in.TopicID) {
		s.log.Debug().Int64("chat_id", in.ChatID).Int64("topic_id", in.TopicID).
			Msg("message outside watched topic, ignored")
		return nil
	}
	if strings.TrimSpace(in.Text) == "" && in.PhotoRef == "" {
		return ErrEmptySubmission
	}

	key := buffer.Key{ChatID: in.ChatID, UserID: in.UserID}
	if isEditCommand(in.Text) {
		return s.beginEdit(ctx, key, in.MessageID)
	}

	window := s.BufferWindow
	if _, editing := s.edits.Get(key); editing {
		window = s.EditWindow
	}

	now := time.Now().UTC()
	accepted := false

	if text := strings.TrimSpace(in.Text); text != "" {
		s.buf.Accept(key, buffer.Fragment{
			Text:       text,
			MessageID:  in.MessageID,
			ReceivedAt: now,
		}, window)
		accepted = true
	}

	if in.PhotoRef != "" {
		frag := buffer.Fragment{
			Caption:    strings.TrimSpace(in.Caption),
			IsOCR:      true,
			MessageID:  in.MessageID,
			ReceivedAt: now,
		}
		go func() {
			ocrCtx, cancel := context.WithTimeout(context.Background(), photoBudget)
			defer cancel()
			frag.Text = s.recognizePhoto(ocrCtx, in.PhotoRef)
			s.buf.Accept(key, frag, window)
		}()
		accepted = true
	}

	if accepted {
		s.rememberMessage(key, in.MessageID)
	}
	return nil
}

// isEditCommand recognizes the /edit chat command, with or without the
// @botname suffix group chats append.
func isEditCommand(text string) bool {
	text = strings.TrimSpace(text)
	return text == "/edit" || strings.HasPrefix(text, "/edit@")
}

// beginEdit opens the correction window for the member's last committed row,
// echoing the committed facts so the member knows what they are amending.
// The in-memory record survives within one process; after a restart the
// target is recovered from the ledger.
func (s *SubmissionService) beginEdit(ctx context.Context, key buffer.Key, replyTo int64) error {
	last, ok := s.lastSubs.Get(key)
	if !ok {
		row, err := s.Store.LastByUser(ctx, key.ChatID, key.UserID)
		if err != nil {
			s.notify(ctx, key.ChatID, replyTo, noEditTargetMessage(), s.RejectTTL)
			return ErrNoEditTarget
		}
		last = lastSubmission{RowID: row.ID, Fact: factFromRow(row)}
		s.lastSubs.Set(key, last.RowID, last.Fact)
	}
	s.openEditSession(key, last.RowID, last.Fact)
	s.notify(ctx, key.ChatID, replyTo, editPromptMessage(last.Fact, formatWindow(s.EditSessionTTL)), s.SuccessTTL)
	s.log.Info().Int64("chat_id", key.ChatID).Int64("user_id", key.UserID).
		Str("row_id", last.RowID).Msg("edit session opened")
	return nil
}

// recognizePhoto downloads and OCRs one receipt image. Every failure
// degrades to an empty transcript.
func (s *SubmissionService) recognizePhoto(ctx context.Context, fileID string) string {
	data, filename, err := s.Files.Fetch(ctx, fileID)
	if err != nil {
		s.log.Warn().Err(err).Str("file_id", fileID).Msg("photo download failed, continuing without transcript")
		return ""
	}
	text, err := s.Recognizer.Recognize(ctx, data, filename)
	if err != nil {
		s.log.Warn().Err(err).Str("file_id", fileID).Msg("ocr failed, continuing without transcript")
		return ""
	}
	return extract.CleanOCR(text)
}

func (s *SubmissionService) rememberMessage(key buffer.Key, messageID int64) {
	s.msgMu.Lock()
	s.messageIDs[key] = append(s.messageIDs[key], messageID)
	s.msgMu.Unlock()
}

// takeMessages removes and returns the message ids feeding the current
// cycle.
func (s *SubmissionService) takeMessages(key buffer.Key) []int64 {
	s.msgMu.Lock()
	ids := s.messageIDs[key]
	delete(s.messageIDs, key)
	s.msgMu.Unlock()
	return ids
}

func (s *SubmissionService) keyLock(key buffer.Key) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.flushMu[key]
	if !ok {
		m = &sync.Mutex{}
		s.flushMu[key] = m
	}
	return m
}

// flush runs one full pipeline cycle for a flushed fragment batch. It is the
// buffer's callback and runs on the debounce timer goroutine.
func (s *SubmissionService) flush(key buffer.Key, frags []buffer.Fragment) {
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	log := s.log.With().Int64("chat_id", key.ChatID).Int64("user_id", key.UserID).Logger()

	group, ok := s.Groups.ByChat(key.ChatID)
	if !ok {
		log.Error().Msg("flush for unregistered chat dropped")
		submissionOutcomes.WithLabelValues("error").Inc()
		return
	}

	msgIDs := s.takeMessages(key)
	replyTo := lastID(msgIDs)

	// Abort if every triggering message disappeared during the window: a
	// member deleting their post withdraws the submission.
	if len(msgIDs) > 0 && s.allDeleted(ctx, key.ChatID, msgIDs) {
		log.Info().Ints64("message_ids", msgIDs).Msg("submission withdrawn, all messages deleted")
		submissionOutcomes.WithLabelValues("aborted").Inc()
		return
	}

	merged := buffer.Merge(frags)
	if strings.TrimSpace(merged.Combined) == "" && merged.Captions == "" {
		s.notify(ctx, key.ChatID, replyTo, emptySubmissionMessage(), s.RejectTTL)
		s.react(ctx, key.ChatID, replyTo, reactRejected)
		submissionOutcomes.WithLabelValues("empty").Inc()
		return
	}

	houses, err := s.Houses.Snapshot(ctx, group.ChatID)
	if err != nil {
		log.Error().Err(err).Msg("house registry snapshot failed")
		houses = nil
	}

	session, editing := s.edits.Get(key)

	input := extract.Input{
		MergedText: merged.Combined,
		UserText:   merged.UserText,
		Caption:    merged.Captions,
		EditMode:   editing,
		Houses:     houses,
	}
	if editing {
		orig := session.Fact
		input.Original = &orig
	}
	fact := extract.Extract(input)
	if editing {
		fact = mergeFacts(session.Fact, fact)
	}
	log.Info().
		Str("house", fact.HouseNumber).
		Str("month", fact.Month).
		Str("amount", fact.Amount).
		Str("txid", fact.TransactionID).
		Str("reason", string(fact.Reason)).
		Bool("edit", editing).
		Msg("facts extracted")

	prior, err := s.Store.FindByTransactionID(ctx, group.ChatID, fact.TransactionID)
	if err != nil {
		log.Error().Err(err).Msg("duplicate prefetch failed")
		submissionOutcomes.WithLabelValues("error").Inc()
		return
	}
	if editing {
		prior = withoutRow(prior, session.RowID)
	}

	outcome := validate.Chain(fact, validate.Input{
		PriorRows:      prior,
		Authorized:     group.Beneficiaries,
		KnownHouses:    houses,
		AmountOptional: s.AmountOptional || group.AmountOptional,
	})
	if !outcome.OK {
		log.Info().Str("gate", string(outcome.FailedGate)).Str("detail", outcome.Detail).Msg("submission rejected")
		s.notify(ctx, key.ChatID, replyTo, rejectMessage(outcome), s.RejectTTL)
		s.react(ctx, key.ChatID, replyTo, reactRejected)
		submissionOutcomes.WithLabelValues("rejected").Inc()
		return
	}

	rowID, updated, err := s.commit(ctx, group, key, fact, editing)
	if err != nil {
		log.Error().Err(err).Msg("commit failed")
		s.notify(ctx, key.ChatID, replyTo, rejectMessage(validate.Outcome{Detail: "internal error, please resend"}), s.RejectTTL)
		submissionOutcomes.WithLabelValues("error").Inc()
		return
	}
	s.lastSubs.Set(key, rowID, fact)

	msg := successMessage(fact, updated)
	reaction := reactAccepted
	if outcome.UnknownHouse && fact.HouseNumber != "" {
		if err := s.Houses.Flag(ctx, group.ChatID, fact.HouseNumber); err != nil {
			log.Error().Err(err).Str("house", fact.HouseNumber).Msg("flagging unknown house failed")
		}
		msg += flaggedHouseNote(fact.HouseNumber)
		reaction = reactFlagged
	}
	msg += "\n" + editHintMessage()

	s.notify(ctx, key.ChatID, replyTo, msg, s.SuccessTTL)
	s.react(ctx, key.ChatID, replyTo, reaction)

	if updated {
		submissionOutcomes.WithLabelValues("edited").Inc()
	} else {
		submissionOutcomes.WithLabelValues("committed").Inc()
	}
	log.Info().Str("row_id", rowID).Bool("updated", updated).Msg("payment committed")
}

// commit writes the fact to the ledger. Outside an edit session it always
// appends. Inside one, it updates in place only when the member already has
// a committed row for the same (house, month, category) cell; a correction
// that describes a different cell appends a fresh row instead of destroying
// the earlier one.
func (s *SubmissionService) commit(ctx context.Context, group config.Group, key buffer.Key, fact extract.Fact, editing bool) (rowID string, updated bool, err error) {
	if editing {
		s.edits.Close(key)
		row, findErr := s.Store.FindRow(ctx, group.ChatID, fact.Reason, fact.HouseNumber, fact.Month)
		if findErr == nil && row.SubmittedBy == key.UserID {
			applyFact(row, fact)
			if err := s.Store.Update(ctx, row); err != nil {
				return "", false, fmt.Errorf("update edit target: %w", err)
			}
			return row.ID, true, nil
		}
	}

	row := rowFromFact(group.ChatID, key.UserID, fact)
	created, err := s.Store.Append(ctx, row)
	if err != nil {
		return "", false, err
	}
	return created.ID, false, nil
}

// openEditSession starts the correction window and schedules its expiry
// notice.
func (s *SubmissionService) openEditSession(key buffer.Key, rowID string, fact extract.Fact) {
	s.edits.Open(key, rowID, fact, s.EditSessionTTL)
	time.AfterFunc(s.EditSessionTTL+time.Second, func() {
		if s.edits.Expire(key, rowID) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			s.notify(ctx, key.ChatID, 0, editExpiredMessage(), s.RejectTTL)
		}
	})
}

// allDeleted probes whether every message in ids has been removed from the
// chat. A probe error counts the message as still present.
func (s *SubmissionService) allDeleted(ctx context.Context, chatID int64, ids []int64) bool {
	for _, id := range ids {
		exists, err := s.Notifier.Exists(ctx, chatID, id)
		if err != nil || exists {
			return false
		}
	}
	return true
}

func (s *SubmissionService) notify(ctx context.Context, chatID, replyTo int64, text string, ttl time.Duration) {
	if _, err := s.Notifier.Reply(ctx, chatID, replyTo, text, ttl); err != nil {
		s.log.Error().Err(err).Int64("chat_id", chatID).Msg("notification failed")
	}
}

func (s *SubmissionService) react(ctx context.Context, chatID, messageID int64, emoji string) {
	if messageID == 0 {
		return
	}
	if err := s.Notifier.React(ctx, chatID, messageID, emoji); err != nil {
		s.log.Debug().Err(err).Int64("chat_id", chatID).Msg("reaction failed")
	}
}

// mergeFacts overlays an edit-mode extraction onto the committed fact:
// corrected fields win, everything the correction left blank is kept.
func mergeFacts(orig, edit extract.Fact) extract.Fact {
	out := orig
	if edit.HouseNumber != "" {
		out.HouseNumber = edit.HouseNumber
	}
	if edit.Amount != "" {
		out.Amount = edit.Amount
	}
	if edit.Month != "" {
		out.Month = edit.Month
	}
	// Reason extraction falls back to the catch-all category, so only a
	// correction that names a real category moves the row between sheets.
	if edit.Reason != "" && edit.Reason != domain.ReasonOther {
		out.Reason = edit.Reason
	}
	if edit.TransactionID != "" {
		out.TransactionID = edit.TransactionID
	}
	if edit.Beneficiary != "" {
		out.Beneficiary = edit.Beneficiary
	}
	if edit.PayerName != "" {
		out.PayerName = edit.PayerName
	}
	if edit.RawDate != "" {
		out.RawDate = edit.RawDate
		out.EthiopianDate = edit.EthiopianDate
	}
	return out
}

// rowFromFact maps an extraction result to a ledger row.
func rowFromFact(groupID, userID int64, fact extract.Fact) domain.PaymentRow {
	row := domain.PaymentRow{
		GroupID:       groupID,
		Category:      fact.Reason,
		HouseNumber:   fact.HouseNumber,
		Month:         fact.Month,
		Amount:        parseAmount(fact.Amount),
		TransactionID: fact.TransactionID,
		PayerName:     fact.PayerName,
		Beneficiary:   fact.Beneficiary,
		PaymentDate:   fact.RawDate,
		EthiopianDate: fact.EthiopianDate,
		SubmittedBy:   userID,
	}
	return row
}

// factFromRow reconstructs the extraction facts from a committed row, used
// when an edit target has to be recovered from the ledger.
func factFromRow(row *domain.PaymentRow) extract.Fact {
	return extract.Fact{
		HouseNumber:   row.HouseNumber,
		Amount:        formatAmount(row.Amount),
		Month:         row.Month,
		Reason:        row.Category,
		TransactionID: row.TransactionID,
		Beneficiary:   row.Beneficiary,
		PayerName:     row.PayerName,
		RawDate:       row.PaymentDate,
		EthiopianDate: row.EthiopianDate,
	}
}

// applyFact writes the fact's payment fields onto an existing row.
func applyFact(row *domain.PaymentRow, fact extract.Fact) {
	row.Category = fact.Reason
	row.HouseNumber = fact.HouseNumber
	row.Month = fact.Month
	row.Amount = parseAmount(fact.Amount)
	row.TransactionID = fact.TransactionID
	row.PayerName = fact.PayerName
	row.Beneficiary = fact.Beneficiary
	row.PaymentDate = fact.RawDate
	row.EthiopianDate = fact.EthiopianDate
}

// parseAmount converts the extracted decimal string to ETB. Unparseable
// amounts become 0; the required-fields gate already ensured presence when
// the group demands it.
func parseAmount(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func withoutRow(rows []domain.PaymentRow, id string) []domain.PaymentRow {
	out := rows[:0]
	for _, r := range rows {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

func lastID(ids []int64) int64 {
	if len(ids) == 0 {
		return 0
	}
	return ids[len(ids)-1]
}

// formatWindow renders a duration for user messages ("60 ሰከንድ").
func formatWindow(d time.Duration) string {
	if d < time.Minute || d%time.Minute != 0 {
		return fmt.Sprintf("%d ሰከንድ", int(d.Seconds()))
	}
	return fmt.Sprintf("%d ደቂቃ", int(d.Minutes()))
}

