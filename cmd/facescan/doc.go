/*
Facescan runs the face-detection pipeline from the command line.

It reads the same environment variables as the server and layers its flags
on top of them.

Usage:

	facescan [--store sqlite|postgres] [--db path-or-url] [--photos dir] <command>

Commands:

	run     index the library, then process every new camera photo once
	index   rebuild the photo index
	tag     tag a detected face: facescan tag <mediaId> <faceKey> <tag>
	list    print one gallery page: facescan list --page 2

Run exits with status 1 when the batch run fails. Interrupting it cancels
the run; the page in flight is not persisted.
*/
package main
