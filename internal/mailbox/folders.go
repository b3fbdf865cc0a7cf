package mailbox

import (
	"context"
	"fmt"
	"strings"

	"github.com/wesm/inboxctl/internal/mail"
)

// LoadFolders fetches the user's custom folder names.
func (c *Controller) LoadFolders(ctx context.Context) ([]string, error) {
	names, err := c.gw.ListFolders(ctx, c.user)
	if err != nil {
		c.logger.Warn("failed to load folders", "error", err)
		c.setError("Failed to load folders")
		return nil, fmt.Errorf("list folders: %w", err)
	}
	c.mu.Lock()
	c.folders = append([]string(nil), names...)
	c.mu.Unlock()
	return names, nil
}

// Folders returns the custom folder names last loaded.
func (c *Controller) Folders() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.folders...)
}

// TargetFolders lists valid move destinations: system folders followed by
// custom folders, excluding the current folder.
func (c *Controller) TargetFolders() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, f := range append(mail.SystemFolders(), c.folders...) {
		if f != c.folder {
			out = append(out, f)
		}
	}
	return out
}

// CreateFolder creates a custom folder and reloads the folder list.
func (c *Controller) CreateFolder(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if err := mail.ValidateFolderName(name); err != nil {
		return err
	}
	if err := c.gw.CreateFolder(ctx, c.user, name); err != nil {
		c.logger.Warn("failed to create folder", "folder", name, "error", err)
		c.setError(fmt.Sprintf("Failed to create folder %q", name))
		return fmt.Errorf("create folder %q: %w", name, err)
	}
	_, err := c.LoadFolders(ctx)
	return err
}

// RenameFolder renames a custom folder. When it is the current folder the
// view follows it to the new name.
func (c *Controller) RenameFolder(ctx context.Context, oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if mail.IsSystemFolder(oldName) || oldName == mail.FolderSearch {
		return fmt.Errorf("rename %q: %w", oldName, mail.ErrReservedFolder)
	}
	if err := mail.ValidateFolderName(newName); err != nil {
		return err
	}
	if err := c.gw.RenameFolder(ctx, c.user, oldName, newName); err != nil {
		c.logger.Warn("failed to rename folder", "folder", oldName, "new_name", newName, "error", err)
		c.setError(fmt.Sprintf("Failed to rename folder %q", oldName))
		return fmt.Errorf("rename folder %q: %w", oldName, err)
	}
	if _, err := c.LoadFolders(ctx); err != nil {
		return err
	}
	if c.Folder() == oldName {
		return c.LoadFolder(ctx, newName)
	}
	return nil
}

// DeleteFolder asks for confirmation and deletes a custom folder with its
// messages. When it is the current folder the view returns to the inbox.
func (c *Controller) DeleteFolder(ctx context.Context, name string) error {
	if mail.IsSystemFolder(name) || name == mail.FolderSearch {
		return fmt.Errorf("delete %q: %w", name, mail.ErrReservedFolder)
	}
	prompt := fmt.Sprintf("Delete folder %q and all messages in it?", name)
	if err := c.confirm(ctx, prompt); err != nil {
		return err
	}
	if err := c.gw.DeleteFolder(ctx, c.user, name); err != nil {
		c.logger.Warn("failed to delete folder", "folder", name, "error", err)
		c.setError(fmt.Sprintf("Failed to delete folder %q", name))
		return fmt.Errorf("delete folder %q: %w", name, err)
	}
	if _, err := c.LoadFolders(ctx); err != nil {
		return err
	}
	if c.Folder() == name {
		return c.LoadFolder(ctx, mail.FolderInbox)
	}
	return nil
}
