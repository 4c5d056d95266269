// package models defines the data model for the bookmark sync pipeline:
// bookmarks fetched from X, the targets created in Raindrop.io, and the
// summary produced by a sync run.
package models
