package mailbox

import (
	"context"
	"fmt"

	"github.com/wesm/inboxctl/internal/gateway"
	"github.com/wesm/inboxctl/internal/mail"
)

// DeleteSelected deletes every selected message. See DeleteIDs.
func (c *Controller) DeleteSelected(ctx context.Context) (BatchResult, error) {
	ids := c.Selected()
	if len(ids) == 0 {
		return BatchResult{}, ErrNoSelection
	}
	return c.DeleteIDs(ctx, ids)
}

// DeleteSingle deletes one message. See DeleteIDs.
func (c *Controller) DeleteSingle(ctx context.Context, id int64) (BatchResult, error) {
	return c.DeleteIDs(ctx, []int64{id})
}

// DeleteIDs asks for confirmation and then deletes ids in parallel. In the
// trash the delete is permanent; elsewhere messages move to the trash.
//
// Succeeded ids are removed from the list and the selection. Failed ids
// stay selected so the caller can retry them, and a *BatchError names them.
// The folder is refreshed afterwards in every case.
func (c *Controller) DeleteIDs(ctx context.Context, ids []int64) (BatchResult, error) {
	permanent := c.Folder() == mail.FolderTrash

	if err := c.confirm(ctx, deletePrompt(len(ids), permanent)); err != nil {
		return BatchResult{}, err
	}

	c.logger.Info("deleting messages", "count", len(ids), "permanent", permanent)
	res := c.deleteAll(ctx, ids, permanent)

	c.mu.Lock()
	c.removeLocked(res.Succeeded())
	c.mu.Unlock()

	var batchErr error
	if !res.OK() {
		be := &BatchError{
			Op:        "delete",
			Failed:    res.Failed(),
			Succeeded: res.Succeeded(),
			Causes:    res.Causes(),
		}
		c.logger.Warn("delete partially failed", "failed", len(be.Failed), "succeeded", len(be.Succeeded))
		c.setError(be.Error())
		batchErr = be
	}

	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn("refresh after delete failed", "error", err)
		if batchErr == nil {
			return res, err
		}
	}
	if batchErr != nil {
		// Refresh clears the error slot on success; the batch error wins.
		c.setError(batchErr.Error())
	}
	return res, batchErr
}

func deletePrompt(n int, permanent bool) string {
	noun := "message"
	if n != 1 {
		noun = "messages"
	}
	if permanent {
		return fmt.Sprintf("Permanently delete %d %s? This cannot be undone.", n, noun)
	}
	return fmt.Sprintf("Move %d %s to trash?", n, noun)
}

// deleteAll fans out one delete per id. A message the service no longer
// has counts as deleted.
func (c *Controller) deleteAll(ctx context.Context, ids []int64, permanent bool) BatchResult {
	return fanOut(ctx, ids, c.maxInFlight, func(ctx context.Context, id int64) error {
		var err error
		if permanent {
			err = c.gw.PermanentDelete(ctx, id)
		} else {
			err = c.gw.Delete(ctx, id)
		}
		if gateway.IsNotFound(err) {
			c.logger.Debug("message already deleted", "id", id)
			return nil
		}
		if err != nil {
			c.logger.Warn("failed to delete message", "id", id, "error", err)
		}
		return err
	})
}

// MoveSelected moves the selection to dest in two phases: copy everything,
// then, only if every copy succeeded, delete everything from the source.
//
// A failed delete is retried once. Ids that still fail, and ids whose copy
// succeeded when another copy failed, exist in both folders; they are
// flagged in Duplicates and reported in the returned *MoveError.
func (c *Controller) MoveSelected(ctx context.Context, dest string) error {
	ids := c.Selected()
	if len(ids) == 0 {
		return ErrNoSelection
	}
	return c.MoveIDs(ctx, ids, dest)
}

// MoveIDs moves ids to dest. See MoveSelected.
func (c *Controller) MoveIDs(ctx context.Context, ids []int64, dest string) error {
	source := c.Folder()
	if dest == "" || dest == mail.FolderSearch {
		return fmt.Errorf("cannot move to %q: %w", dest, mail.ErrReservedFolder)
	}
	if dest == source {
		return ErrSameFolder
	}

	c.logger.Info("moving messages", "count", len(ids), "from", source, "to", dest)
	copied := fanOut(ctx, ids, c.maxInFlight, func(ctx context.Context, id int64) error {
		err := c.gw.MoveToFolder(ctx, id, dest)
		if err != nil {
			c.logger.Warn("failed to copy message", "id", id, "folder", dest, "error", err)
		}
		return err
	})
	if !copied.OK() {
		me := &MoveError{
			Phase:       PhaseCopy,
			Destination: dest,
			Failed:      copied.Failed(),
			Duplicates:  copied.Succeeded(),
			Causes:      copied.Causes(),
		}
		c.flagDuplicates(me.Duplicates, dest)
		return c.finishMove(ctx, me)
	}

	permanent := source == mail.FolderTrash
	removed := c.deleteAll(ctx, ids, permanent)
	if failed := removed.Failed(); len(failed) > 0 {
		c.logger.Info("retrying failed removals", "count", len(failed))
		retry := c.deleteAll(ctx, failed, permanent)
		removed = mergeRetry(removed, retry)
	}

	c.mu.Lock()
	c.removeLocked(removed.Succeeded())
	c.mu.Unlock()

	if !removed.OK() {
		me := &MoveError{
			Phase:       PhaseRemove,
			Destination: dest,
			Failed:      removed.Failed(),
			Duplicates:  removed.Failed(),
			Causes:      removed.Causes(),
		}
		c.flagDuplicates(me.Duplicates, dest)
		return c.finishMove(ctx, me)
	}
	return c.finishMove(ctx, nil)
}

// mergeRetry overlays the retry outcomes onto the first attempt.
func mergeRetry(first, retry BatchResult) BatchResult {
	outcome := make(map[int64]error, len(retry.Items))
	for _, it := range retry.Items {
		outcome[it.ID] = it.Err
	}
	items := make([]ItemResult, len(first.Items))
	for i, it := range first.Items {
		if err, ok := outcome[it.ID]; ok {
			it.Err = err
		}
		items[i] = it
	}
	return BatchResult{Items: items}
}

func (c *Controller) flagDuplicates(ids []int64, dest string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		c.duplicates[id] = dest
	}
}

func (c *Controller) finishMove(ctx context.Context, me *MoveError) error {
	if me != nil {
		c.logger.Warn("move failed", "phase", me.Phase.String(), "failed", len(me.Failed))
	}
	refreshErr := c.Refresh(ctx)
	if refreshErr != nil {
		c.logger.Warn("refresh after move failed", "error", refreshErr)
	}
	if me != nil {
		c.setError(me.Error())
		return me
	}
	return refreshErr
}

// MarkRead sets the read flag on the server and, only on success, on the
// local copy in the list and the open preview.
func (c *Controller) MarkRead(ctx context.Context, id int64) error {
	return c.setRead(ctx, id, true)
}

// MarkUnread clears the read flag. See MarkRead.
func (c *Controller) MarkUnread(ctx context.Context, id int64) error {
	return c.setRead(ctx, id, false)
}

// ToggleReadStatus flips the read flag of a loaded message.
func (c *Controller) ToggleReadStatus(ctx context.Context, id int64) error {
	c.mu.Lock()
	var read, found bool
	if i := c.indexLocked(id); i >= 0 {
		read, found = c.messages[i].IsRead, true
	} else if c.preview != nil && c.preview.ID == id {
		read, found = c.preview.IsRead, true
	}
	c.mu.Unlock()
	if !found {
		return fmt.Errorf("toggle read status of %d: %w", id, ErrUnknownMessage)
	}
	return c.setRead(ctx, id, !read)
}

func (c *Controller) setRead(ctx context.Context, id int64, read bool) error {
	var err error
	if read {
		err = c.gw.MarkRead(ctx, id)
	} else {
		err = c.gw.MarkUnread(ctx, id)
	}
	if err != nil {
		c.logger.Warn("failed to update read status", "id", id, "read", read, "error", err)
		c.setError("Failed to update read status")
		return fmt.Errorf("mark %d read=%t: %w", id, read, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexLocked(id); i >= 0 {
		c.messages[i].IsRead = read
	}
	if c.preview != nil && c.preview.ID == id {
		c.preview.IsRead = read
	}
	return nil
}

// SetPreview opens msg for reading. An unread message is marked read as a
// side effect.
func (c *Controller) SetPreview(ctx context.Context, msg mail.Message) error {
	c.mu.Lock()
	p := msg
	c.preview = &p
	c.mu.Unlock()

	if msg.IsRead {
		return nil
	}
	return c.MarkRead(ctx, msg.ID)
}

// ClearPreview closes the open message.
func (c *Controller) ClearPreview() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.preview = nil
}

// Preview returns the open message, if any.
func (c *Controller) Preview() (mail.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.preview == nil {
		return mail.Message{}, false
	}
	return *c.preview, true
}
