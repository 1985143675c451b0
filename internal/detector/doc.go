// Package detector wraps face detection backends behind one interface.
//
// HTTPDetector sends a JPEG rendition of the image to an inference service.
// GoFaceDetector (build tag "goface") runs dlib through github.com/Kagami/go-face
// and needs its model files on disk. Both report boxes clipped to the image
// and wrap every failure, cancellation included, in *DetectionError.
//
// FaceKey derives the stable identifier used to attach a tag to a face.
package detector
