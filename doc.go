// Package peres reads, edits and writes the resources embedded in Windows
// PE images: manifests, menus, version information, icons, cursors, string
// tables, accelerators and any other resource type as raw bytes.
//
// Resources form a three-level [Directory] keyed by type, name and language.
// Loading walks the resource section and keeps each entry's bytes; typed
// payloads are decoded on first access through a [Registry] of codecs.
// Saving re-encodes every decoded payload, lays out a new resource section
// and replaces it in the image. Entries that were never decoded, or whose
// payload still encodes to what it encoded to when decoded, are written back
// byte for byte.
//
// # Quick Start
//
// Raise the execution level in an application manifest:
//
//	im, err := peres.Open("app.exe")
//	if err != nil {
//	    return err
//	}
//	m, _, err := im.Manifest()
//	if err != nil {
//	    return err
//	}
//	m.SetExecutionLevel(manifest.RequireAdministrator, false)
//	err = im.Save("app.exe", peres.SaveWithBackup("app.exe.zst"))
//
// Work with any resource type:
//
//	for e := range im.Entries(peres.TypeMenu) {
//	    mnu, err := peres.As[*menu.Menu](e)
//	    ...
//	}
//
// # Partial failures
//
// A resource that fails to decode does not fail the load. The error is
// returned as a [*DecodeError] when the payload is requested, and the entry
// keeps its original bytes. [Image.DecodeAll] collects these errors for every
// entry.
//
// # Codecs
//
// The default registry handles RT_MANIFEST, RT_MENU, RT_VERSION, RT_ICON,
// RT_CURSOR, RT_GROUP_ICON, RT_GROUP_CURSOR, RT_STRING and RT_ACCELERATOR.
// Other types decode to [Raw]. Use [NewRegistry] and [WithRegistry] to add
// codecs.
package peres
