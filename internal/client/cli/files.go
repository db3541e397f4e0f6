package cli

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/drivesync/internal/common"
	"github.com/dmitrijs2005/drivesync/internal/models"
)

// getMultiline is an indirection used to facilitate testing.
var getMultiline = GetMultiline

// resolveFile finds a file of the current listing by id or by name.
func (a *App) resolveFile(ref string) (models.FileRecord, error) {
	d := a.workspace.Drive()
	if f, ok := d.Find(ref); ok {
		return f, nil
	}
	var found []models.FileRecord
	for _, f := range d.Files() {
		if f.Name == ref {
			found = append(found, f)
		}
	}
	switch len(found) {
	case 0:
		return models.FileRecord{}, fmt.Errorf("%q: %w", ref, common.ErrorNotFound)
	case 1:
		return found[0], nil
	default:
		return models.FileRecord{}, fmt.Errorf("%w: %d files are named %q, use the id", common.ErrorValidation, len(found), ref)
	}
}

func kindLabel(f models.FileRecord) string {
	flags := ""
	if f.IsStarred {
		flags += "*"
	}
	if f.IsShared {
		flags += "s"
	}
	return strings.TrimSpace(string(f.Kind) + " " + flags)
}

// List prints the current folder, ordered by kind, then name.
func (a *App) List(_ context.Context, _ []string) error {
	d := a.workspace.Drive()
	if err := d.Err(); err != nil {
		fmt.Fprintln(a.out, "Listing unavailable:", err)
	}
	files := d.Files()
	if len(files) == 0 {
		fmt.Fprintln(a.out, "(empty)")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tKIND\tSIZE\tUPDATED")
	for _, f := range files {
		size := ""
		if !f.IsFolder() {
			size = fmt.Sprint(f.SizeBytes)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", f.ID, f.Name, kindLabel(f), size, f.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

// ChangeFolder navigates into a folder of the listing, one level up with
// "..", or to the root with "/".
func (a *App) ChangeFolder(ctx context.Context, args []string) error {
	d := a.workspace.Drive()
	var target *string

	switch args[0] {
	case "/":
	case "..":
		parent, err := d.ParentFolder(ctx)
		if err != nil {
			return err
		}
		target = parent
	default:
		f, err := a.resolveFile(args[0])
		if err != nil {
			return err
		}
		if !f.IsFolder() {
			return fmt.Errorf("%w: %s is not a folder", common.ErrorValidation, f.Name)
		}
		target = &f.ID
	}

	if err := d.NavigateTo(ctx, target); err != nil {
		return err
	}
	return a.PrintTrail(ctx, nil)
}

func (a *App) PrintTrail(_ context.Context, _ []string) error {
	trail := a.workspace.Drive().Breadcrumbs()
	names := make([]string, len(trail))
	for i, b := range trail {
		names[i] = b.Name
		if names[i] == "" {
			names[i] = "?"
		}
	}
	fmt.Fprintln(a.out, strings.Join(names, " / "))
	return nil
}

func (a *App) MakeFolder(ctx context.Context, args []string) error {
	id, err := a.workspace.Drive().CreateFolder(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Created folder", id)
	return nil
}

// NewDocument creates an inline document with content typed by the user.
func (a *App) NewDocument(ctx context.Context, args []string) error {
	content, err := getMultiline(a.reader, "Enter content", a.out)
	if err != nil {
		return err
	}
	id, err := a.workspace.Drive().CreateDocument(ctx, strings.Join(args, " "), content)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Created document", id)
	return nil
}

func (a *App) Show(_ context.Context, args []string) error {
	f, err := a.resolveFile(args[0])
	if err != nil {
		return err
	}
	switch {
	case f.IsFolder():
		return fmt.Errorf("%w: %s is a folder", common.ErrorValidation, f.Name)
	case f.BlobURL != "":
		fmt.Fprintf(a.out, "%s (%s, %d bytes)\n%s\n", f.Name, f.MimeType, f.SizeBytes, f.BlobURL)
	default:
		fmt.Fprintln(a.out, f.Content)
	}
	if len(f.SharedWith) > 0 {
		fmt.Fprintln(a.out, "Shared with:", strings.Join(f.SharedWith, ", "))
	}
	return nil
}

// Edit replaces an inline document's content. The write goes through the
// autosaver and lands after the debounce delay.
func (a *App) Edit(_ context.Context, args []string) error {
	f, err := a.resolveFile(args[0])
	if err != nil {
		return err
	}
	if f.IsFolder() || f.BlobURL != "" {
		return fmt.Errorf("%w: %s has no inline content", common.ErrorValidation, f.Name)
	}
	saver := a.workspace.Autosaver()
	if saver == nil {
		return common.ErrAuthRequired
	}
	content, err := getMultiline(a.reader, "Enter new content", a.out)
	if err != nil {
		return err
	}
	saver.Edit(f.ID, content)
	fmt.Fprintln(a.out, "Saving...")
	return nil
}

func detectMimeType(path string, data []byte) string {
	if mt := mime.TypeByExtension(filepath.Ext(path)); mt != "" {
		return mt
	}
	return http.DetectContentType(data)
}

// Upload stores a local file in the blob store and records it in the
// current folder.
func (a *App) Upload(ctx context.Context, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	name := filepath.Base(path)
	if len(args) > 1 {
		name = strings.Join(args[1:], " ")
	}

	d := a.workspace.Drive()
	id, err := d.UploadFile(ctx, data, name, detectMimeType(path, data), d.CurrentFolder())
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Uploaded", id)
	return nil
}

func (a *App) Remove(ctx context.Context, args []string) error {
	f, err := a.resolveFile(args[0])
	if err != nil {
		return err
	}
	err = a.workspace.Drive().DeleteFile(ctx, f.ID)
	var perr *common.PartialCoordinationError
	if err != nil && !(errors.As(err, &perr) && perr.Stage == "blob") {
		return err
	}
	fmt.Fprintln(a.out, "Deleted", f.Name)
	if perr != nil {
		// The record is gone; only the payload is left behind.
		fmt.Fprintf(a.out, "Warning: stored payload was not removed (%s): %v\n", perr.BlobPath, perr.Err)
	}
	return nil
}

func (a *App) Rename(ctx context.Context, args []string) error {
	f, err := a.resolveFile(args[0])
	if err != nil {
		return err
	}
	return a.workspace.Drive().Rename(ctx, f.ID, strings.Join(args[1:], " "))
}

func (a *App) Star(ctx context.Context, args []string) error {
	f, err := a.resolveFile(args[0])
	if err != nil {
		return err
	}
	return a.workspace.Drive().ToggleStar(ctx, f.ID)
}

func (a *App) Share(ctx context.Context, args []string) error {
	f, err := a.resolveFile(args[0])
	if err != nil {
		return err
	}
	return a.workspace.Drive().ShareFile(ctx, f.ID, args[1])
}
