/*

Textpack packs a directory tree into one or more size-bounded text
files and unpacks those files back into a tree.  The text files can be
pasted anywhere that only accepts flat text.

Vocabulary:

- root: the directory being packed, or the directory a restore writes into
- relpath: path relative to root, always slash-separated
- abspath: relpath joined to root, used for I/O
- candidate: a file found while walking root
- rules: the ignore patterns from the root's ignore file; each pattern
	is a simplified glob ('.' literal, '*' any run of characters) that
	matches anywhere inside relpath, so it is looser than
	gitignore
- blockset: file extensions that are never packed (images, audio, video, pdf)
- record: one file serialized as a path line plus its content, between
	delimiter lines
- unit: one output file named {prefix}_{seq}.txt, seq starting at 1,
	holding zero or more records
- budget: the approximate maximum size of a unit in megabytes, counted
	in source file bytes
- rotation: closing the current unit and opening the next one because
	the next file would push it over budget

*/

package textpack
