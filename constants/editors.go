package constants

// ImageEditorDenyList holds lowercase substrings of general-purpose image editors that may
// appear in an image's Software metadata tag.
var ImageEditorDenyList = []string{
	"photoshop",
	"gimp",
	"lightroom",
	"snapseed",
	"picsart",
	"canva",
	"pixlr",
	"affinity photo",
	"paint.net",
	"facetune",
	"photopea",
	"inshot",
	"polarr",
}
