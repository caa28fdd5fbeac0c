package dialog

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/transit-voice/backend/internal/model/transit"
)

const (
	promptWelcome = "Welcome to transit arrivals. I can tell you when your next bus is coming."
	promptAskCity = "What city are you in?"
	promptAskStop = "What is your stop number? You can find it on the sign at your stop."
	promptHelp    = "You can ask for arrivals, change your city or stop, filter routes, or turn clock times on or off. What would you like to do?"
	promptGoodbye = "Good-bye."
	promptFatal   = "Sorry, something went wrong on my end. Please try again later."

	promptIntroduction  = " Next time, just open the skill and I'll tell you when your bus is coming. You can also change your city or stop at any time."
	promptClockTimeNews = " By the way, I can also tell you arrival times as clock times, like 3:05 PM. Just say enable clock times."

	promptNothingToRepeat = "I don't have anything to repeat yet. You can ask me for arrivals."
	promptStopNotLocated  = "Sorry, I couldn't locate your stop. Let's try again. What is your stop number?"
	promptNeedOnboarding  = "I need to know your city and stop first."
)

func askStopForCity(city string) string {
	return fmt.Sprintf("Ok, your city is %s. %s", city, promptAskStop)
}

func cityNotFound(city string) string {
	return fmt.Sprintf("I couldn't find a city called %s. %s", city, promptAskCity)
}

func noRegionNear(city string, regions []transit.Region) string {
	text := fmt.Sprintf("Sorry, there is no transit service I can reach near %s.", city)
	if names := regionNames(regions); names != "" {
		text += " Supported regions are " + names + "."
	}
	return text + " " + promptAskCity
}

func stopNotFound(code, city string) string {
	return fmt.Sprintf("I couldn't find stop %s in %s. %s", code, city, promptAskStop)
}

func describeStop(stop transit.Stop) string {
	if stop.Direction == "" {
		return stop.Name
	}
	return fmt.Sprintf("%s, %s bound,", stop.Name, directionName(stop.Direction))
}

func askVerifyStop(stop transit.Stop) string {
	return fmt.Sprintf("Did you mean the %s stop?", describeStop(stop))
}

func confirmStop(stop transit.Stop) string {
	return fmt.Sprintf("Ok, your stop number is %s, which is the %s stop.", stop.Code, describeStop(stop))
}

func askRoute(route transit.Route) string {
	return fmt.Sprintf("Do you want to hear about route %s?", route.SpokenName())
}

func exclusionSummary(names []string) string {
	if len(names) == 0 {
		return "Ok, you'll hear about every route at your stop."
	}
	return fmt.Sprintf("Ok, I won't tell you about route %s.", joinSpoken(names))
}

func regionNames(regions []transit.Region) string {
	names := make([]string, 0, len(regions))
	for _, r := range regions {
		names = append(names, r.Name)
	}
	return joinSpoken(names)
}

func joinSpoken(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
	}
}

func directionName(d string) string {
	switch strings.ToUpper(d) {
	case "N":
		return "north"
	case "S":
		return "south"
	case "E":
		return "east"
	case "W":
		return "west"
	case "NE":
		return "northeast"
	case "NW":
		return "northwest"
	case "SE":
		return "southeast"
	case "SW":
		return "southwest"
	default:
		return strings.ToLower(d)
	}
}
